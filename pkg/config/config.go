// Package config reads API settings from the environment, with typed
// lookups and defaults.
package config

import (
	"log"
	"os"
	"strconv"
)

// GetString returns the environment variable for key, or fallback
// when the variable is unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt parses the environment variable for key as an integer. An
// unset or unparseable value yields fallback; parse failures are
// logged so a bad deployment value is visible.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool parses the environment variable for key as a boolean, with
// the same fallback behavior as GetInt.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
