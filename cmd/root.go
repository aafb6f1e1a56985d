package cmd

import (
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	debug    bool
	logLevel slog.LevelVar
	logCfg   LogConfig
	kdfCfg   KDFConfig
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "kdbxvault",
	Short: "Create, inspect and verify KDBX password databases",
	Long: `kdbxvault reads and writes KDBX password-database files: the
composite-key derivation, the outer and inner containers, and the
KeePass XML payload inside them.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	rootCmd.PersistentFlags().Int("decryption-time", 0, "Target KDF decryption time in milliseconds")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("decryption_time_ms", rootCmd.PersistentFlags().Lookup("decryption-time"))
}

// rootCmdLoadConfig reads the optional config file (if --config was
// given), binds the persistent flags through viper, and validates the
// resulting LogConfig/KDFConfig. Subcommands call this after their own
// flags are bound.
func rootCmdLoadConfig(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	var cfg vaultConfig
	if err := mapstructure.Decode(viper.AllSettings(), &cfg); err != nil {
		return err
	}

	debug = cfg.Debug
	if debug {
		logLevel.Set(slog.LevelDebug)
	}

	logCfg = LogConfig{Level: cfg.LogLevel}
	if err := logCfg.Validate(); err != nil {
		return err
	}
	switch logCfg.Level {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	case "info":
		logLevel.Set(slog.LevelInfo)
	}

	kdfCfg = KDFConfig{DecryptionTimeMS: cfg.DecryptionTimeMS}
	return kdfCfg.Validate()
}
