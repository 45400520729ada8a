// Package cmd implements the CLI commands for dlnaprobe.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/dlnaprobe/internal/config"
	"github.com/jmylchreest/dlnaprobe/internal/negotiator"
	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/internal/transport"
	"github.com/jmylchreest/dlnaprobe/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "dlnaprobe",
	Short:   "DLNA HTTP HEAD capability negotiator",
	Version: version.Short(),
	Long: `dlnaprobe asks a DLNA media server what it supports for one resource.

It sends an HTTP HEAD request carrying the DLNA vendor headers, decodes the
seek ranges, content features, playspeeds and link protection details from
the response, and validates seek and rate change requests against them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Logging flags are not bound to viper; they override config and env
	// only when set explicitly.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.dlnaprobe/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/dlnaprobe")
		viper.AddConfigPath("$HOME/.dlnaprobe")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the default logger. Priority: explicit CLI flag,
// then DLNAPROBE_LOGGING_* env, then config file, then defaults.
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg := config.LoggingConfig{
		Level:      strings.ToLower(level),
		Format:     strings.ToLower(format),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// loadConfig decodes the viper state prepared by initConfig.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newSession builds a negotiator session over TCP from cfg.
func newSession(cfg *config.Config, logger *slog.Logger, opts ...negotiator.Option) *negotiator.Session {
	dialer := transport.NewTCP(transport.TCPConfig{
		DialTimeout:     cfg.Transport.DialTimeout,
		IOTimeout:       cfg.Transport.IOTimeout,
		MaxResponseSize: cfg.Transport.MaxResponseSize.Int(),
	})
	opts = append([]negotiator.Option{negotiator.WithLogger(logger)}, opts...)
	return negotiator.New(dialer, opts...)
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
