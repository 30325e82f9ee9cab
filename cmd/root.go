package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/output"
	"github.com/menoncello/triage/internal/scoring"
	"github.com/menoncello/triage/internal/store"
	"github.com/menoncello/triage/internal/triage"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Issue prioritization and triage engine",
	Long: `triage scores, classifies, and prioritizes code-quality issues.
It combines multi-factor scoring, a trainable classifier, custom
prioritization rules, and workflow-aware adjustments to turn raw tool
findings into an actionable, ranked triage plan.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/triage/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "triage")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRIAGE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "triage")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "triage.db"))
	viper.SetDefault("engine.workers", 0)
	viper.SetDefault("engine.preserve_order", true)
	viper.SetDefault("engine.strategy", string(models.StrategyFirstMatch))
	viper.SetDefault("engine.cache_size", 4096)
	viper.SetDefault("engine.cache_ttl", "15m")
	viper.SetDefault("scoring.severity_weight", 0.35)
	viper.SetDefault("scoring.impact_weight", 0.25)
	viper.SetDefault("scoring.effort_weight", 0.15)
	viper.SetDefault("scoring.business_value_weight", 0.25)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store is initialized lazily so config/version commands can run
	// without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// engineOptions builds triage engine options from the effective config.
func engineOptions() triage.Options {
	opts := triage.DefaultOptions()

	if w := viper.GetInt("engine.workers"); w > 0 {
		opts.Workers = w
	}
	opts.PreserveOrder = viper.GetBool("engine.preserve_order")
	opts.Strategy = models.ConflictStrategy(viper.GetString("engine.strategy"))
	opts.CacheSize = viper.GetInt("engine.cache_size")

	if ttl, err := time.ParseDuration(viper.GetString("engine.cache_ttl")); err == nil && ttl > 0 {
		opts.CacheTTL = ttl
	}

	opts.Scoring = scoring.Config{Weights: scoring.Weights{
		Severity:      viper.GetFloat64("scoring.severity_weight"),
		Impact:        viper.GetFloat64("scoring.impact_weight"),
		Effort:        viper.GetFloat64("scoring.effort_weight"),
		BusinessValue: viper.GetFloat64("scoring.business_value_weight"),
	}}

	return opts
}
