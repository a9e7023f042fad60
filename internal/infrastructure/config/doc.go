// Package config loads and validates the shadesync configuration
// file. A YAML file supplies the base settings, environment
// variables override individual fields, and anything left unset and
// optional falls back to a default. Validation runs once at load so
// the rest of the service can treat the resulting Config as
// well-formed.
//
// Secrets such as the gateway token and broker password belong in
// environment variables rather than the file, and the file itself
// should be readable only by the service user.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.PIN)
package config
