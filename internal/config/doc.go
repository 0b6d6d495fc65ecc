// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, so secrets like database passwords and API keys can live in
// the process environment (or a .env file loaded at startup) rather than on
// disk. See configs/etl.example.yaml for the full schema.
package config
