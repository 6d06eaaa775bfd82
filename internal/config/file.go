package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ASKMESH_"

// FileLookup layers a YAML config file under next. Nested keys map onto the
// environment names, so `ai: {api_key: x}` answers ASKMESH_AI_API_KEY.
// Values found by next always win.
func FileLookup(path string, next LookupFunc) (LookupFunc, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %q: %w", path, err)
	}

	values := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		raw := k.Get(key)
		if raw == nil {
			continue
		}
		values[envKey(key)] = fmt.Sprint(raw)
	}

	return func(key string) (string, bool) {
		if next != nil {
			if value, ok := next(key); ok {
				return value, true
			}
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

func envKey(path string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}
