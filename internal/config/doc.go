// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, and a .env file next to the working directory is
// loaded first so credentials can stay out of the YAML.
package config
