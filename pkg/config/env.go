package config

import "strings"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// normalizeEnvironment lower-cases the configured environment, defaulting to development
func normalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return EnvDevelopment
	}
	return env
}

// IsProductionLike reports whether environment must be configured like production.
// Staging is held to the same requirements.
func IsProductionLike(environment string) bool {
	switch normalizeEnvironment(environment) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
