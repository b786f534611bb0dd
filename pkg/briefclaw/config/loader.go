package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned by Validate when the selected platform has no bot token.
var ErrMissingToken = errors.New("bot token is not configured")

// envVarPattern matches ${VAR} and ${VAR:-default} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads the configuration. An empty path searches the standard
// locations; when no file exists the defaults are used. Environment
// variables (including .env and .env.local) override file values, and
// secrets still empty afterwards are looked up in the OS keyring.
// Load does not validate; callers that need a complete config call Validate.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	if path == "" {
		path = FindConfigFile()
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg, err = Parse([]byte(expandEnvVars(string(data))))
		if err != nil {
			return nil, err
		}
		checkFilePermissions(path)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ResolveSecrets(cfg)
	return cfg, nil
}

// Parse overlays YAML bytes onto the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions. Secrets are not
// written; they belong in the environment or the keyring.
func Save(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Telegram.Token = envRef(cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	sanitized.Discord.Token = envRef(cfg.Discord.Token, "DISCORD_BOT_TOKEN")
	sanitized.LLM.APIKey = envRef(cfg.LLM.APIKey, "LLM_API_KEY")
	sanitized.Sources.News.APIKey = envRef(cfg.Sources.News.APIKey, "NEWS_API_KEY")
	sanitized.Sources.Weather.APIKey = envRef(cfg.Sources.Weather.APIKey, "WEATHER_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile returns the first existing config file in the standard
// locations, or "".
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"briefclaw.yaml",
		"briefclaw.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadEnvFiles loads .env files. godotenv.Load never overrides variables
// already present in the environment.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default}. Unset variables without
// a default expand to "" so empty secrets fall through to the keyring.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		return sub[2]
	})
}

// applyEnvOverrides applies the well-known environment variables on top of
// the file values.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token},
		{"DISCORD_BOT_TOKEN", &cfg.Discord.Token},
		{"CHAT_ID", &cfg.Destination},
		{"NEWS_API_KEY", &cfg.Sources.News.APIKey},
		{"WEATHER_API_KEY", &cfg.Sources.Weather.APIKey},
		{"OPENAI_API_KEY", &cfg.LLM.APIKey},
		{"LLM_API_KEY", &cfg.LLM.APIKey},
		{"LLM_BASE_URL", &cfg.LLM.BaseURL},
		{"LLM_MODEL", &cfg.LLM.Model},
		{"AUTHORIZED_USER_ID", &cfg.AuthorizedUserID},
		{"PUSH_TIME", &cfg.Schedule.PushTime},
		{"TIMEZONE", &cfg.Timezone},
		{"BRIEFCLAW_PLATFORM", &cfg.Platform},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(os.Getenv(s.env)); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"MAX_HISTORY", &cfg.Assistant.MaxHistory},
		{"MAX_ITEMS_PER_SOURCE", &cfg.Sources.MaxItemsPerSource},
	}
	for _, i := range ints {
		v := strings.TrimSpace(os.Getenv(i.env))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.env, v, err)
		}
		*i.dst = n
	}
	return nil
}

// envRef replaces a secret with a reference to envVar when that variable
// currently holds it, and drops it otherwise.
func envRef(value, envVar string) string {
	if value == "" {
		return ""
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return ""
}

// checkFilePermissions warns if the config file is readable by group or others.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}
