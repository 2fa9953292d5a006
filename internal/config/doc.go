// Package config provides configuration types and loading for the
// API Gateway.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (with ${VAR:-default} substitution), then environment variables such as
// RATE_LIMIT_BURST or CATALOG_SERVICE_URL. The result is validated once at
// startup; routes are immutable afterwards.
//
//	cfg, err := config.LoadConfig(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
