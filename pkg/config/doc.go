// Package config defines the configuration surface for the Ganymede gateway
// and handles loading it from YAML files with environment overrides.
//
// Configuration flows through three stages: the YAML file is parsed, default
// values fill any unset fields, and GANYMEDE_* environment variables override
// both. The final configuration is validated as a whole so every problem is
// reported at once.
//
// Example:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("ganymede.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
package config
