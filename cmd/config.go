package cmd

import "fmt"

// vaultConfig holds the settings viper gathers from flags and the
// optional config file, decoded in one shot by rootCmdLoadConfig.
type vaultConfig struct {
	Debug            bool   `mapstructure:"debug"`
	LogLevel         string `mapstructure:"log-level"`
	DecryptionTimeMS int    `mapstructure:"decryption_time_ms"`
}

// LogConfig is bound from viper: flags register defaults, a config
// file (if present) overrides them, LogConfig.Validate runs before any
// subcommand's RunE.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (c LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log level must be one of debug/info/warn/error, got %q", c.Level)
	}
}

// KDFConfig carries the decryption-time target shared by db-create and
// kdf-bench, validated against the same [100ms, 30s] range the KDF
// benchmark contract itself enforces (0 means unset).
type KDFConfig struct {
	DecryptionTimeMS int `mapstructure:"decryption_time_ms"`
}

const (
	minDecryptionTimeMS = 100
	maxDecryptionTimeMS = 30000
)

func (c KDFConfig) Validate() error {
	if c.DecryptionTimeMS == 0 {
		return nil
	}
	if c.DecryptionTimeMS < minDecryptionTimeMS || c.DecryptionTimeMS > maxDecryptionTimeMS {
		return fmt.Errorf("decryption time must be between %dms and %dms, got %dms", minDecryptionTimeMS, maxDecryptionTimeMS, c.DecryptionTimeMS)
	}
	return nil
}
