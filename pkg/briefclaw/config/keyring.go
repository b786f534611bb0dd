// keyring.go stores and resolves secrets through the operating system's
// native keyring (Secret Service, Keychain, Credential Manager).
//
// Resolution order for every secret:
//  1. Environment variable (including .env / .env.local)
//  2. config.yaml value (after ${VAR} expansion)
//  3. OS keyring entry under service "briefclaw"
package config

import (
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name used in the OS keyring.
const KeyringService = "briefclaw"

// secretFields maps keyring key names to the config field they fill.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"telegram_bot_token": &cfg.Telegram.Token,
		"discord_bot_token":  &cfg.Discord.Token,
		"llm_api_key":        &cfg.LLM.APIKey,
		"news_api_key":       &cfg.Sources.News.APIKey,
		"weather_api_key":    &cfg.Sources.Weather.APIKey,
	}
}

// SecretNames lists the keys accepted by StoreSecret, sorted.
func SecretNames() []string {
	names := make([]string, 0, 5)
	for name := range secretFields(DefaultConfig()) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSecretName reports whether name is a known secret key.
func IsSecretName(name string) bool {
	_, ok := secretFields(DefaultConfig())[name]
	return ok
}

// StoreSecret saves a secret to the OS keyring.
func StoreSecret(name, value string) error {
	if !IsSecretName(name) {
		return fmt.Errorf("unknown secret %q (known: %v)", name, SecretNames())
	}
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

// GetSecret retrieves a secret from the OS keyring. Returns "" if not found.
func GetSecret(name string) string {
	val, err := keyring.Get(KeyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(name string) error {
	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("deleting %s from keyring: %w", name, err)
	}
	return nil
}

// ResolveSecrets fills secrets that are still empty from the OS keyring.
func ResolveSecrets(cfg *Config) {
	for name, dst := range secretFields(cfg) {
		if *dst != "" {
			continue
		}
		if val := GetSecret(name); val != "" {
			*dst = val
		}
	}
}
