package config

import (
	"strings"
)

// secretKeys lists dot-separated keys whose values are masked on display.
// Connection URLs carry passwords.
var secretKeys = map[string]bool{
	"llm.api_key":          true,
	"database.url":         true,
	"database.execlog_url": true,
	"redis.url":            true,
}

const providerKeysPrefix = "llm.provider_keys."

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key] || strings.HasPrefix(key, providerKeysPrefix)
}

// Flatten turns {"redis": {"prefix": "x"}} into {"redis.prefix": "x"}.
// Empty sections produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with non-empty secret strings replaced
// by "***" plus their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		s, ok := v.(string)
		if !ok || s == "" || !IsSecretKey(k) {
			continue
		}
		out[k] = "***" + s[max(0, len(s)-4):]
	}
	return out
}
