// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and CODEPAD_* environment variables. It covers
// server transport settings, the external container controller, session
// lifetime and cleanup policy, the template marketplace, metrics and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Controller: %s\n", cfg.Controller.BaseURL)
package config
