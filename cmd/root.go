// Package cmd implements the usagepipe CLI: a thin caller of the three
// pipeline entry points (LoadWarm, LoadCold, AggregateSummaries). It never
// grows dashboard behavior of its own.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toktrack/usagepipe/config"
	"github.com/toktrack/usagepipe/logging"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
	debug    bool
	verbose  bool
	offline  bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "usagepipe",
	Short: "AI coding assistant token usage pipeline",
	Long: `usagepipe ingests session logs from several AI coding assistants,
costs each recorded invocation, and aggregates the results into
per-source, per-day usage summaries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if debug {
			cfg.Debug.Enabled = true
			cfg.App.LogLevel = "debug"
		}
		cfg.Pricing.Offline = cfg.Pricing.Offline || offline

		logging.InitGlobalLogger(cfg.App.LogLevel, cfg.App.LogFile)
		appConfig = cfg

		if verbose {
			fmt.Fprintf(os.Stderr, "usagepipe: loaded configuration: %+v\n", cfg)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViperDefaults)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search ./usagepipe.yaml, $HOME/.config/usagepipe/config.yaml, $HOME/.usagepipe/config.yaml, /etc/usagepipe/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "never contact the pricing service; use cached pricing only")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pricingCmd)
}

func initViperDefaults() {
	viper.SetEnvPrefix("USAGEPIPE")
	viper.AutomaticEnv()

	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("pricing.offline", false)
}

// location resolves appConfig.App.Timezone to a *time.Location, the loc
// every bucketing decision in the pipeline is made against. "Local" and
// "" both mean time.Local; anything else is looked up by IANA name, and
// an unrecognized name falls back to time.Local rather than failing a
// report over a typo'd config value.
func location() *time.Location {
	tz := appConfig.App.Timezone
	if tz == "" || tz == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usagepipe: unknown timezone %q, falling back to local: %v\n", tz, err)
		return time.Local
	}
	return loc
}

func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()

	if cfgFile != "" {
		loader.AddSource(config.NewFileSource(cfgFile))
	} else {
		for _, path := range config.ConfigPaths() {
			loader.AddSource(config.NewFileSource(path))
		}
	}

	loader.AddSource(config.NewEnvSource("USAGEPIPE"))
	loader.AddSource(config.NewFlagSource(cmd.Flags()))

	return loader.LoadWithDefaults()
}
