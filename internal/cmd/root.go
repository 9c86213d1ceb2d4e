package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/fang/v2"
	"github.com/MakeNowJust/heredoc"
	"github.com/mcfsalla/sqlregexp/internal/config"
	"github.com/mcfsalla/sqlregexp/internal/db"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "devel"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqlregexp [flags] [SQL...]",
		Short: "Run SQL with regexp functions against SQLite",
		Long: heredoc.Doc(`
			Run SQL statements against a SQLite database that has the regexp functions
			installed. Statements come from the arguments, or from stdin when there are none.

			Functions: regexp, iregexp (posix only), regexp_match, regexp_match_count,
			regexp_match_position and regexp_version_info. The REGEXP operator maps to regexp.
		`),
		Example: heredoc.Doc(`
			sqlregexp "SELECT regexp_match_count('[0-9]+', 'ab12cd34')"
			sqlregexp --backend pcre --db notes.db "SELECT id FROM notes WHERE body REGEXP '\d{4}'"
			echo "SELECT regexp_version_info();" | sqlregexp
		`),
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			dsn, _ := cmd.Flags().GetString("db")
			format, _ := cmd.Flags().GetString("format")
			showStats, _ := cmd.Flags().GetBool("stats")

			p, err := newPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			stmts, err := statements(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var stats io.Writer
			if showStats {
				stats = cmd.ErrOrStderr()
			}
			return runStatements(cmd.Context(), opts, dsn, stmts, p, stats)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().String("backend", "", "Regex backend: posix or pcre")
	rootCmd.PersistentFlags().Int("cache-size", 0, "Maximum number of cached compiled patterns")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "Write rotated logs to this file")
	rootCmd.PersistentFlags().String("format", formatAuto, "Output format: auto, table or tsv")
	rootCmd.Flags().String("db", db.MemoryDSN, "SQLite database path or DSN")
	rootCmd.Flags().Bool("stats", false, "Print pattern cache counters to stderr when done")

	rootCmd.AddCommand(
		newFunctionsCmd(),
		newVersionCmd(),
		newSchemaCmd(),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// loadOptions resolves Options from the config file, the environment and the
// flags, in increasing precedence.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	backend, _ := cmd.Flags().GetString("backend")
	cacheSize, _ := cmd.Flags().GetInt("cache-size")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")

	opts, err := config.Load(path)
	if err != nil {
		return config.Options{}, err
	}
	opts = opts.Merge(config.Options{
		Backend:   backend,
		CacheSize: cacheSize,
		LogLevel:  logLevel,
		LogFile:   logFile,
	})
	if err := opts.Validate(); err != nil {
		return config.Options{}, err
	}
	return opts, nil
}

// runStatements executes stmts in order and stops at the first failure. Cache
// counters go to stats when it is not nil.
func runStatements(ctx context.Context, opts config.Options, dsn string, stmts []string, p *printer, stats io.Writer) error {
	reg, err := db.NewRegistry(opts)
	if err != nil {
		return err
	}
	defer reg.Close()

	conn, err := db.Open(ctx, reg, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, stmt := range stmts {
		rows, err := conn.QueryContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("executing %q: %w", abbreviate(stmt), err)
		}
		if err := p.printRows(rows); err != nil {
			return fmt.Errorf("executing %q: %w", abbreviate(stmt), err)
		}
	}
	if stats != nil {
		exact, folded := reg.Stats()
		return printStats(stats, reg.Backend().Name(), exact, folded)
	}
	return nil
}

// statements returns args as statements, or the statements read from in when
// args is empty.
func statements(args []string, in io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return splitStatements(string(data)), nil
}

// splitStatements splits a script on semicolons that are not inside a quoted
// string or identifier.
func splitStatements(script string) []string {
	var (
		out   []string
		start int
		quote rune
	)
	for i, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '[':
			quote = ']'
		case r == ';':
			if s := strings.TrimSpace(script[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(script[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func abbreviate(stmt string) string {
	const limit = 60
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) <= limit {
		return stmt
	}
	return stmt[:limit] + "..."
}
