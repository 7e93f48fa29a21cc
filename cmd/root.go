package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/logging"
	"github.com/joescharf/lr/internal/output"
	"github.com/joescharf/lr/internal/review"
	"github.com/joescharf/lr/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    zerolog.Logger
	dataStore store.Store
	reviewSvc *review.Service

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "lr",
	Short: "Local Review - review branch diffs with line comments",
	Long: `lr reviews the changes on a git branch against a base branch.
It freezes both ends of the diff into a review session, tracks per-file
review progress and line comments, and serves them to a browser UI,
an MCP client, or this CLI.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/lr/config.yaml)")
	rootCmd.PersistentFlags().String("repo", "", "Repository path (default: current directory)")
	_ = viper.BindPFlag("repo_path", rootCmd.PersistentFlags().Lookup("repo"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults() {
	stateDir, _ := configDirFunc()
	cwd, _ := os.Getwd()

	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "lr.db"))
	viper.SetDefault("repo_path", cwd)
	viper.SetDefault("port", 3001)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", logging.FormatConsole)
	viper.SetDefault("activity.default_limit", review.DefaultActivityLimit)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, viper.GetString("log.format"))
	if err != nil {
		ui.Warning("Invalid log config, using defaults: %v", err)
		l, _ = logging.New("", "")
	}
	logger = l

	// Store and service are opened lazily, so config/version run without a db.
}

// rootRun handles `lr` with no subcommand: list sessions for the current repository.
func rootRun(cmd *cobra.Command) error {
	if _, err := getService(); err != nil {
		return cmd.Help()
	}
	return sessionListRun(cmd.Context(), false)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getService returns the shared review service, opening the store on first call.
func getService() (*review.Service, error) {
	if reviewSvc != nil {
		return reviewSvc, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	reviewSvc = review.NewService(s, git.NewRegistry(),
		review.WithLogger(logger),
		review.WithActivityLimit(viper.GetInt("activity.default_limit")),
	)
	return reviewSvc, nil
}

// repoPath returns the absolute default repository path.
func repoPath() (string, error) {
	p := viper.GetString("repo_path")
	if p == "" {
		p = "."
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve repository path: %w", err)
	}
	return abs, nil
}
