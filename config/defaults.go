package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.path": "jobclock.db",

		"logging.level":  "info",
		"logging.format": "pretty",

		"engine.clock_in_window": "15m",
		"engine.lock_timeout":    "10s",

		"cors.allowed_origins": []string{"http://localhost:5173", "http://localhost:8080"},
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
