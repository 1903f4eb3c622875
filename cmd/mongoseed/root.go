package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mouradhm/mongo-seed/pkg/activities"
	"github.com/mouradhm/mongo-seed/pkg/config"
	seederrors "github.com/mouradhm/mongo-seed/pkg/errors"
	"github.com/mouradhm/mongo-seed/pkg/logger"
	"github.com/mouradhm/mongo-seed/pkg/manifest"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

// runTimeout bounds a whole seed run
const runTimeout = 5 * time.Minute

type cliOptions struct {
	envFile     string
	uri         string
	user        string
	password    string
	authDB      string
	db          string
	manifest    string
	policy      string
	collections string
	timeout     time.Duration
	logLevel    string
	logFormat   string
	dryRun      bool
}

// runFunc executes a seed run; swapped out in tests
type runFunc func(ctx context.Context, cfg *config.Config, m *manifest.Manifest, log logger.Logger) (models.SeedResult, error)

func newRootCmd(out io.Writer, run runFunc, exitCode *int) *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "mongoseed",
		Short: "Provision MongoDB collections and seed data at container start",
		Long: `mongoseed authenticates to MongoDB as an admin user, selects the target
database, ensures the declared collections exist and inserts the seed documents.

Configuration comes from the environment (optionally a .env file) and can be
overridden with flags:
  MONGO_URI, MONGO_ADMIN_USER, MONGO_ADMIN_PASSWORD, MONGO_AUTH_DATABASE,
  MONGO_DATABASE, MONGO_CONNECT_TIMEOUT, SEED_MANIFEST, SEED_POLICY,
  LOG_LEVEL, LOG_FORMAT

Seed policies:
  skip-nonempty  leave collections that already hold documents untouched (default)
  append         always insert the seed documents
  replace        delete existing documents, then insert`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := seed(cmd, opts, out, run)
			*exitCode = seederrors.ExitCode(err)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	flags.StringVar(&opts.uri, "uri", "", "MongoDB connection URI")
	flags.StringVar(&opts.user, "user", "", "Admin username")
	flags.StringVar(&opts.password, "password", "", "Admin password")
	flags.StringVar(&opts.authDB, "auth-db", "", "Authentication database")
	flags.StringVar(&opts.db, "db", "", "Target database")
	flags.StringVar(&opts.manifest, "manifest", "", "Seed manifest (.yaml, .yml, .toml or .json); default is built-in")
	flags.StringVar(&opts.policy, "policy", "", "Seed policy: skip-nonempty, append or replace")
	flags.StringVar(&opts.collections, "collections", "", "Comma-separated subset of manifest collections to provision")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Connection timeout")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Print what would be provisioned without connecting")

	return cmd
}

func execute(args []string) int {
	exitCode := seederrors.ExitOK
	cmd := newRootCmd(os.Stdout, activities.Run, &exitCode)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitCode == seederrors.ExitOK {
			// Flag parsing and other cobra errors
			exitCode = seederrors.ExitConfiguration
		}
	}
	return exitCode
}

func seed(cmd *cobra.Command, opts *cliOptions, out io.Writer, run runFunc) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, cfg)

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	m, err := manifest.LoadOrDefault(cfg.ManifestPath)
	if err != nil {
		return err
	}
	if m, err = m.Filter(parseCommaSeparatedList(opts.collections)); err != nil {
		return err
	}

	if opts.dryRun {
		if _, err := models.ParseSeedPolicy(cfg.Policy); err != nil {
			return seederrors.NewConfigError(err.Error()).WithCause(seederrors.ErrUnknownPolicy)
		}
		printPlan(out, cfg, m)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.WithFields(cfg.Redacted()).Info("Starting seed run")

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	result, err := run(ctx, cfg, m, log)
	printSummary(out, result)
	return err
}

// applyFlags overrides config values with flags the user set explicitly
func applyFlags(cmd *cobra.Command, opts *cliOptions, cfg *config.Config) {
	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}

	override("uri", &cfg.MongoURI, opts.uri)
	override("user", &cfg.AdminUser, opts.user)
	override("password", &cfg.AdminPassword, opts.password)
	override("auth-db", &cfg.AuthDatabase, opts.authDB)
	override("db", &cfg.TargetDatabase, opts.db)
	override("manifest", &cfg.ManifestPath, opts.manifest)
	override("policy", &cfg.Policy, opts.policy)
	override("log-level", &cfg.LogLevel, opts.logLevel)
	override("log-format", &cfg.LogFormat, opts.logFormat)
	if flags.Changed("timeout") {
		cfg.ConnectTimeout = opts.timeout
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice of strings
func parseCommaSeparatedList(input string) []string {
	if input == "" {
		return nil
	}

	var result []string
	for _, s := range strings.Split(input, ",") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// printPlan prints what a run would provision
func printPlan(out io.Writer, cfg *config.Config, m *manifest.Manifest) {
	fmt.Fprintln(out, "=== MongoDB Seed Plan ===")
	fmt.Fprintf(out, "Target: %s\n", cfg)
	for _, c := range m.Collections {
		fmt.Fprintf(out, "  - %s: %d documents, %d indexes\n", c.Name, len(c.Documents), len(c.Indexes))
	}
	fmt.Fprintf(out, "Total seed documents: %d\n", m.TotalDocuments())
}

// printSummary prints a summary of the seed results
func printSummary(out io.Writer, result models.SeedResult) {
	fmt.Fprintln(out, "\n=== MongoDB Seed Summary ===")
	fmt.Fprintf(out, "Run: %s\n", result.RunID)
	fmt.Fprintf(out, "Database: %s\n", result.Database)
	fmt.Fprintf(out, "Total documents inserted: %d\n", result.TotalDocuments)
	fmt.Fprintf(out, "Success: %v\n", result.OverallSuccess)

	if len(result.CollectionResults) == 0 {
		return
	}
	fmt.Fprintln(out, "\nCollection details:")

	successCount := 0
	for _, collResult := range result.CollectionResults {
		state := "existing"
		if collResult.Created {
			state = "created"
		}

		var status string
		switch {
		case !collResult.Success:
			status = "✗ Failed: " + collResult.ErrorMessage
		case collResult.Insert.Skipped:
			status = "✓ Skipped: " + collResult.Insert.SkipReason
			successCount++
		default:
			status = "✓ Success"
			successCount++
		}
		fmt.Fprintf(out, "  - %s (%s): %d documents inserted, %s\n",
			collResult.CollectionName, state, collResult.Insert.InsertedCount, status)
	}

	fmt.Fprintf(out, "\nSuccessfully provisioned %d out of %d collections\n", successCount, len(result.CollectionResults))
}
