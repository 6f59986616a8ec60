package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Backend identifiers accepted in db_type.
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
	DBTypeMySQL    = "mysql"
	DBTypeBolt     = "bolt"
)

// DBTypes lists the supported backends.
var DBTypes = []string{DBTypeSQLite, DBTypePostgres, DBTypeMySQL, DBTypeBolt}

// Property keys understood by FromProperties.
const (
	PropCreateSchema = "create.schema"
	PropDBType       = "db.type"
	PropDriver       = "driver"
	PropURL          = "url"
	PropUsername     = "username"
	PropPassword     = "password"
	PropMaxCapacity  = "max.capacity"
)

// Config is the provider configuration.
type Config struct {
	// CreateSchema creates missing tables on start. When false the schema
	// must already exist.
	CreateSchema bool `json:"create_schema" yaml:"create_schema"`

	// DBType selects the backend: sqlite, postgres, mysql or bolt.
	DBType string `json:"db_type" yaml:"db_type"`

	// Driver overrides the database/sql driver for SQL backends.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// URL is the DSN, or the file path for sqlite and bolt.
	URL string `json:"url" yaml:"url"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// MaxCapacity bounds each channel. Zero means unbounded.
	MaxCapacity int64 `json:"max_capacity,omitempty" yaml:"max_capacity,omitempty"`
}

// Default returns built-in defaults. DBType and URL have no default.
func Default() Config {
	return Config{CreateSchema: true}
}

// Validate checks required keys and value ranges.
func (c Config) Validate() error {
	var errs []error
	switch c.DBType {
	case "":
		errs = append(errs, errors.New("db_type is required"))
	case DBTypeSQLite, DBTypePostgres, DBTypeMySQL:
	case DBTypeBolt:
		if c.Driver != "" {
			errs = append(errs, fmt.Errorf("driver %q is not used by the bolt backend", c.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db_type %q: must be one of %v", c.DBType, DBTypes))
	}
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.MaxCapacity < 0 {
		errs = append(errs, fmt.Errorf("max_capacity must not be negative, got %d", c.MaxCapacity))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "xxxxx"
	}
	return c
}

// FromProperties builds a Config from flat key/value properties, starting
// from Default. Unknown keys and malformed values are errors, and so is a
// result that fails Validate.
func FromProperties(props map[string]string) (Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		v := strings.TrimSpace(props[k])
		switch k {
		case PropCreateSchema:
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				continue
			}
			cfg.CreateSchema = b
		case PropDBType:
			cfg.DBType = strings.ToLower(v)
		case PropDriver:
			cfg.Driver = v
		case PropURL:
			cfg.URL = v
		case PropUsername:
			cfg.Username = v
		case PropPassword:
			// Passwords are taken verbatim.
			cfg.Password = props[k]
		case PropMaxCapacity:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				continue
			}
			cfg.MaxCapacity = n
		default:
			errs = append(errs, fmt.Errorf("unknown property %q", k))
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Properties renders c as flat properties, the inverse of FromProperties.
func (c Config) Properties() map[string]string {
	props := map[string]string{
		PropCreateSchema: strconv.FormatBool(c.CreateSchema),
		PropDBType:       c.DBType,
		PropURL:          c.URL,
	}
	if c.Driver != "" {
		props[PropDriver] = c.Driver
	}
	if c.Username != "" {
		props[PropUsername] = c.Username
	}
	if c.Password != "" {
		props[PropPassword] = c.Password
	}
	if c.MaxCapacity != 0 {
		props[PropMaxCapacity] = strconv.FormatInt(c.MaxCapacity, 10)
	}
	return props
}
