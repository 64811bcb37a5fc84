// Package file provides the TOML configuration file behind
// "gphotos config set/get".
//
// Keys use dot notation ("dispatcher.max_attempts") and are written as
// nested TOML tables, so the file stays readable by the runtime config loader.
package file
