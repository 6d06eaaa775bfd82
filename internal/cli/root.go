// Package cli provides the askmesh command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askmesh/askmesh/internal/app"
	"github.com/askmesh/askmesh/internal/cli/chat"
	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/database"
	"github.com/askmesh/askmesh/internal/demo"
	"github.com/askmesh/askmesh/internal/observability"
)

// Version is set at build time.
var Version = "0.1.0"

type rootFlags struct {
	configFile string
	format     string
	verbose    bool
}

// NewRootCmd builds the askmesh command. lookup supplies environment values;
// a --config file is layered beneath it.
func NewRootCmd(lookup config.LookupFunc) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "askmesh",
		Short: "Ask questions about a relational database in plain language",
		Long: `askmesh turns questions into read-only SQL using the database schema,
a language model and a cache of earlier answers, then runs the SQL and
prints the rows. Follow-up questions refine the previous statement.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, lookup, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file layered under ASKMESH_* environment values")
	rootCmd.PersistentFlags().StringVarP(&flags.format, "output", "o", "", "Row format (table|json|csv|md)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log to stderr at debug level")
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{chat.FormatTable, chat.FormatJSON, chat.FormatCSV, chat.FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, lookup, flags)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, a, err := open(cmd, lookup, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			answer := a.NewAssistant("cli").Ask(cmd.Context(), strings.Join(args, " "))
			chat.RenderAnswer(cmd.OutOrStdout(), answer, cfg.Chat.Format)
			if answer.Result.SQL == nil && !answer.Ended {
				return fmt.Errorf("no SQL produced")
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List the schema tables available for retrieval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, a, err := open(cmd, lookup, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			for _, name := range a.Tables {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	rootCmd.AddCommand(newDemoCmd(lookup, flags))

	return rootCmd
}

func newDemoCmd(lookup config.LookupFunc, flags *rootFlags) *cobra.Command {
	opts := demo.SeedOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create sample customers and orders tables in the target database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(lookup, flags)
			if err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), database.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			report, err := demo.Seed(cmd.Context(), db, cfg.Database.Driver, opts, nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers and %d orders\n", report.Customers, report.Orders)
			return nil
		},
	}
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&opts.Customers, "customers", 25, "Number of customers")
	cmd.Flags().IntVar(&opts.Orders, "orders", 200, "Number of orders")
	return cmd
}

func runChat(cmd *cobra.Command, lookup config.LookupFunc, flags *rootFlags) error {
	cfg, a, err := open(cmd, lookup, flags)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	session := chat.NewSession(a.NewAssistant("cli"), chat.Options{
		Format:      cfg.Chat.Format,
		HistoryFile: cfg.Chat.HistoryFile,
		Tables:      a.Tables,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		Logger:      a.Logger,
	})
	return session.Run(cmd.Context())
}

func open(cmd *cobra.Command, lookup config.LookupFunc, flags *rootFlags) (config.Config, *app.App, error) {
	cfg, err := loadConfig(lookup, flags)
	if err != nil {
		return config.Config{}, nil, err
	}

	logWriter := io.Discard
	if flags.verbose {
		logWriter = cmd.ErrOrStderr()
		cfg.Observability.LogLevel = slog.LevelDebug
	}
	logger := observability.NewLogger(cfg, logWriter)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, a, nil
}

func loadConfig(lookup config.LookupFunc, flags *rootFlags) (config.Config, error) {
	if flags.configFile != "" {
		fileLookup, err := config.FileLookup(flags.configFile, lookup)
		if err != nil {
			return config.Config{}, err
		}
		lookup = fileLookup
	}
	cfg, err := config.Load("askmesh", lookup)
	if err != nil {
		return config.Config{}, err
	}
	if flags.format != "" {
		cfg.Chat.Format = flags.format
	}
	if !chat.ValidFormat(cfg.Chat.Format) {
		return config.Config{}, fmt.Errorf("invalid output format %q", cfg.Chat.Format)
	}
	return cfg, nil
}
