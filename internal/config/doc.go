// Package config loads tapline settings.
//
// Sources, lowest precedence first:
//   - built-in defaults (Default)
//   - an optional YAML file
//   - a .env file in the working directory, when present
//   - process environment variables (TAPLINE_*)
//
// The StoreLocation selector decides where the database lives: in memory
// for tests, a local path for development, or the per-user application data
// directory in production.
package config
