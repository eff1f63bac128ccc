package cmd

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"piplock/config"
	"piplock/data"
	"piplock/pypi"
	"piplock/storage"

	"github.com/spf13/cobra"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var (
	Version      string
	cfgPath      string
	dbPath       string
	indexURL     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "piplock",
	Short: "Compile, verify and diff pip-compile requirement lockfiles",
	Long: `piplock works with pip-compile style lockfiles: it compiles .in
requirement sources into pinned requirements.txt output, verifies that an
existing lockfile is internally consistent and satisfies the constraints
its "via" referrers declare, and diffs two lockfiles. Package index
metadata is cached in a local sqlite database.`,
	Example: `  piplock compile -f requirements/base.txt requirements/base.in
  piplock verify requirements/base.txt
  piplock diff requirements/base.txt requirements/base-new.txt
  piplock serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the sqlite index cache")
	rootCmd.PersistentFlags().StringVar(&indexURL, "index-url", "", "package index base URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty", "report format: plain, pretty, or json")

	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
		DisableQuote:    true,
		PadLevelText:    true,
	})
	return logger
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.SQLitePath = dbPath
	}
	if indexURL != "" {
		cfg.IndexURL = indexURL
	}
	return cfg, nil
}

// newManager opens the sqlite index cache and wires the cache-through
// index manager every command resolves against.
func newManager(cmd *cobra.Command, cfg config.Config, logger *logrus.Logger) (*data.Manager, *storage.Storage, func(), error) {
	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	db.SetMaxOpenConns(1)

	store := &storage.Storage{DB: db}
	if err := store.InitSchema(cmd.Context()); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	client := &pypi.Client{
		BaseURL:    cfg.IndexURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}

	manager := &data.Manager{
		Store:         store,
		API:           client,
		Log:           logger,
		MaxConcurrent: cfg.MaxConcurrent,
	}

	return manager, store, func() { db.Close() }, nil
}

func Execute() {
	if Version != "" {
		rootCmd.Version = Version
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
