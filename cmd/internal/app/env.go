package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envLookup returns the trimmed value of key and whether it is non-empty.
func envLookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// envParse parses key with parse and falls back to def when the variable is
// unset, malformed, or rejected by parse.
func envParse[T any](key string, def T, parse func(string) (T, bool)) T {
	v, ok := envLookup(key)
	if !ok {
		return def
	}
	out, ok := parse(v)
	if !ok {
		return def
	}
	return out
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	if v, ok := envLookup(key); ok {
		return v
	}
	return def
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	return envParse(key, def, func(v string) (bool, bool) {
		b, err := strconv.ParseBool(v)
		return b, err == nil
	})
}

// EnvInt reads a positive int env var with a default.
func EnvInt(key string, def int) int {
	return envParse(key, def, func(v string) (int, bool) {
		n, err := strconv.Atoi(v)
		return n, err == nil && n > 0
	})
}

// EnvInt32 reads a non-negative int32 env var with a default.
func EnvInt32(key string, def int32) int32 {
	return envParse(key, def, func(v string) (int32, bool) {
		n, err := strconv.ParseInt(v, 10, 32)
		return int32(n), err == nil && n >= 0
	})
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	return envParse(key, def, func(v string) (time.Duration, bool) {
		d, err := time.ParseDuration(v)
		return d, err == nil && d > 0
	})
}
