// Package config describes how a channel provider reaches its store.
//
// A Config can be built in code, parsed from flat properties
// (FromProperties), or loaded from a YAML, JSON or CUE file (Load). All three
// paths reject unknown keys. CUE files are unified with an embedded schema,
// so type and enum errors are reported with file positions.
package config
