package config

import (
	"bytes"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Load reads a configuration file. The format is chosen by extension:
// .yaml/.yml, .json, or .cue. Keys missing from the file keep their Default
// value.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(b)
	case ".json":
		cfg, err = decodeJSON(b)
	case ".cue":
		cfg, err = decodeCUE(path, b)
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q: use .yaml, .json or .cue", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func decodeJSON(b []byte) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeCUE unifies the file with #Config so the schema constrains it.
func decodeCUE(path string, b []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(b, cue.Filename(path))
	if err := v.Err(); err != nil {
		return Config{}, cueError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(err)
	}

	cfg := Default()
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, cueError(err)
	}
	return cfg, nil
}

func cueError(err error) error {
	return errors.New(cueerrors.Details(err, nil))
}
