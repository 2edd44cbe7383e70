// Package config defines the updater settings and helpers to load, validate
// and save them in YAML format.
//
// The settings file is optional: a missing default file yields Default().
package config
