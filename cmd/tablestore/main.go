package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/likearthian/tablestore/internal/config"
	"github.com/likearthian/tablestore/internal/logger"
)

var (
	backend  string
	dbURL    string
	mongoURI string
	mongoDB  string
	timeout  time.Duration
	logLevel string
	logJSON  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "tablestore",
	Short:             "Schema-driven table client for PostgreSQL, SQLite and MongoDB",
	Long:              `tablestore creates tables from a schema descriptor and runs declarative insert, select, update, exists, count and delete requests against them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.BackendSQL, "Backend: sql or mongo")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "SQL connection string, postgres://... or sqlite://path (default: $DATABASE_URL_TEST)")
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string (default: $MONGO_TEST_URL)")
	rootCmd.PersistentFlags().StringVar(&mongoDB, "mongo-db", "", "MongoDB database name")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-operation timeout (default 30s)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log in JSON")

	rootCmd.AddCommand(demoCmd, createTablesCmd, versionCmd)
}

// setup loads the config, applies explicitly set flags over it and installs the
// logger in the command context.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		c.Backend = backend
	}
	if flags.Changed("db-url") {
		c.DatabaseURL = dbURL
	}
	if flags.Changed("mongo-uri") {
		c.Mongo.URI = mongoURI
	}
	if flags.Changed("mongo-db") {
		c.Mongo.Database = mongoDB
	}
	if flags.Changed("timeout") {
		c.Timeout = timeout
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		c.Log.JSON = logJSON
	}

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	l := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(c.Log.Level),
		Output:     os.Stderr,
		JSON:       c.Log.JSON,
		TimeFormat: "15:04:05",
	})
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), l))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		pterm.Error.Println(err)
		os.Exit(1)
	}
	stop()
}
