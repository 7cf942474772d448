// Package config loads process settings from the environment and agent
// definitions from YAML files.
//
// # Environment
//
// Integration packages declare their settings as structs with env tags and load
// them with Load. A .env file in the working directory is read once, if present.
// Each struct type is parsed once per process; later calls get the cached value.
//
//	var cfg redis.Config // REDIS_URL, REDIS_RETRY_ATTEMPTS, ...
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning the error and suits main.
//
// # Files
//
// Agent definitions live in YAML files. LoadFile expands ${VAR} references from
// the environment, then decodes strictly, so a misspelled key is an error:
//
//	var cfg agent.Config
//	if err := config.LoadFile("PublishingAgent.yaml", &cfg); err != nil {
//		return err
//	}
package config
