package dotenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads .env files in priority order. godotenv never overrides a
// variable that is already set, so earlier files and the real environment win.
func Load(rootPath string) []string {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "dev"
	}
	candidates := []string{
		".env." + env + ".local",
		".env.local",
		".env." + env,
		".env",
	}
	loaded := make([]string, 0, len(candidates))
	for _, name := range candidates {
		path := filepath.Join(rootPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}
