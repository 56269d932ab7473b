// Package env applies dotenv files to the process environment.
package env

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// PathVar overrides the dotenv location passed to LoadDotEnv.
const PathVar = "ENV_PATH"

// LoadDotEnv applies the dotenv file at $ENV_PATH, or defaultPath, without overriding
// variables that are already set. A missing file only fails a local run (env "" or
// "local"); deployed environments are configured by their real environment.
func LoadDotEnv(env string, defaultPath string) error {
	path := os.Getenv(PathVar)
	if path == "" {
		path = defaultPath
	}

	if err := godotenv.Load(path); err != nil {
		if isLocal(env) {
			return fmt.Errorf("load dotenv %s: %w", path, err)
		}
		slog.Debug("No dotenv file applied", "path", path, "env", env)
		return nil
	}
	slog.Info("Applied dotenv file", "path", path, "env", env)
	return nil
}

func isLocal(env string) bool {
	return env == "" || strings.EqualFold(env, "local")
}
