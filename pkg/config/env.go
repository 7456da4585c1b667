package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envRef matches ${VAR}, ${VAR:-default} and bare $VAR in one pass.
// Group 1 is the braced name, group 2 the default, group 3 the bare
// name.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvString substitutes environment references in s. An unset or
// empty variable resolves to its default when one was given, otherwise
// to the empty string.
func expandEnvString(s string) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		groups := envRef.FindStringSubmatch(ref)
		name := groups[1]
		if name == "" {
			name = groups[3]
		}
		if val := os.Getenv(name); val != "" {
			return val
		}
		return groups[2]
	})
}

// parseValue re-types an expanded scalar so numeric and boolean YAML
// values survive substitution.
func parseValue(s string) interface{} {
	if t := strings.ToLower(s); t == "true" || t == "false" {
		return t == "true"
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// expandNode walks a decoded YAML tree in place, expanding environment
// references in every string scalar. Strings a reference changed are
// re-typed through parseValue.
func expandNode(node interface{}) interface{} {
	switch v := node.(type) {
	case string:
		if expanded := expandEnvString(v); expanded != v {
			return parseValue(expanded)
		}
		return v
	case map[string]interface{}:
		for key, val := range v {
			v[key] = expandNode(val)
		}
	case []interface{}:
		for i, item := range v {
			v[i] = expandNode(item)
		}
	}
	return node
}

// LoadEnvFiles loads .env.local then .env. Absent files are fine;
// variables already set (by the shell or an earlier file) win.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		err := godotenv.Load(name)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("loading %s: %w", name, err)
	}
	return nil
}

// apiKeyEnv maps provider names to their conventional key variable.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// providerAPIKey resolves the conventional environment variable for a
// provider's API key, or "" for an unknown provider.
func providerAPIKey(name string) string {
	return os.Getenv(apiKeyEnv[name])
}
