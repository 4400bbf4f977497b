package cmd

import (
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/preload/internal/config"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "preload",
	Short: "Load reference data into an application database",
	Long: `
Preload keeps reference data in sync with a YAML data file.

It runs three passes in order:
- list data: fixed choices with a name, a display name and a display index
- model data: rows matched on a unique field, created or updated
- unique field data: renames of unique values, merging into existing rows

Database Support:
- PostgreSQL (pgx or lib/pq)
- MySQL
- SQLite (mattn/go-sqlite3 or modernc.org/sqlite)`,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("preload version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			color.New(color.FgCyan, color.Bold).Print("preload ")
			color.New(color.FgYellow, color.Bold).Printf("%s\n\n", Version)
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log every row operation")

	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("preload.config")
	}

	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" && !config.IsInitialized() {
		color.Yellow("⚠️  %s not found, using defaults", config.FileName)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a development logger when verbose is set and a production
// logger at the configured level otherwise.
func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
