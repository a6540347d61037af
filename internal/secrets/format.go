package secrets

import (
	"strings"

	"github.com/kvenv/kvenv/env"
)

// EnvVarKey derives the environment variable name for a secret: the name
// upper-cased, with every hyphen replaced by an underscore. Nothing else is
// escaped.
func EnvVarKey(secretName string) string {
	return strings.ReplaceAll(strings.ToUpper(secretName), "-", "_")
}

// FormatEnvVars maps secrets to environment variables. When two secret names
// derive the same key, the later secret wins.
func FormatEnvVars(secrets []Secret) *env.Environment {
	vars := env.NewWithLength(len(secrets))
	for _, s := range secrets {
		vars.Set(EnvVarKey(s.Name), s.Value)
	}
	return vars
}
