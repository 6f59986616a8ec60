package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Schema version tracking:
// 1 - Initial channel schema
const currentSchemaVersion = 1

const schemaVersionKey = "schema_version"

// Bootstrap creates the channel tables if they are missing, or only checks
// for them when create is false. Safe to run against an initialized store.
func (b *Backend) Bootstrap(ctx context.Context, create bool) error {
	if create {
		if err := b.applySchema(ctx); err != nil {
			return err
		}
	}
	return b.checkVersion(ctx)
}

// applySchema runs the idempotent DDL and records the schema version.
func (b *Backend) applySchema(ctx context.Context) error {
	for _, stmt := range b.dialect.SchemaStatements() {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	_, err := b.db.ExecContext(ctx, b.stmts.insertVersion, schemaVersionKey, strconv.Itoa(currentSchemaVersion))
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// checkVersion fails when the schema is absent or newer than this build.
func (b *Backend) checkVersion(ctx context.Context) error {
	var raw string
	err := b.db.QueryRowContext(ctx, b.stmts.readVersion, schemaVersionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("schema not initialized: missing version record")
	}
	if err != nil {
		return fmt.Errorf("schema not initialized: %w", err)
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}
