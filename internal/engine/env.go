package engine

import (
	"fmt"
	"sort"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a dotenv file into KEY=VALUE pairs, sorted by key so the
// engine sees a stable environment across runs.
func LoadEnvFile(path string) ([]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine env file %s: %w", path, err)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
