// Package env reads evaluation settings from WXPATH_* environment
// variables, one typed lookup per setting shape.
package env

import (
	"os"
	"strconv"
	"time"
)

// String returns the value of key, or defaultVal when key is unset.
func String(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// Int returns key parsed as an integer, or defaultVal when key is unset
// or not a valid integer.
func Int(key string, defaultVal int) int {
	value, err := strconv.Atoi(String(key, ""))
	if err != nil {
		return defaultVal
	}
	return value
}

// Bool returns key parsed per strconv.ParseBool, or defaultVal when key
// is unset or not a recognized boolean.
func Bool(key string, defaultVal bool) bool {
	value, err := strconv.ParseBool(String(key, ""))
	if err != nil {
		return defaultVal
	}
	return value
}

// Duration returns key parsed per time.ParseDuration, or defaultVal
// when key is unset or not a valid duration.
func Duration(key string, defaultVal time.Duration) time.Duration {
	value, err := time.ParseDuration(String(key, ""))
	if err != nil {
		return defaultVal
	}
	return value
}
