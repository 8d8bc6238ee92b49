package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secret values are masked.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		val := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			val = mask(val)
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  val,
		})
	}
	return result
}

func mask(v string) string {
	switch {
	case v == "":
		return "(unset)"
	case len(v) <= 8:
		return "********"
	default:
		return v[:4] + "..." + v[len(v)-2:]
	}
}

// SetKey writes a config key to the config file, or to the secrets file for
// API keys.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()}, key, value)
}

func setKeyWith(b ConfigBackend, fs fileSecrets, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fs.Set(key, value)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetInt(key, i)
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
