package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinotql/pinotql/internal/plan"
	"github.com/pinotql/pinotql/internal/pql"
	"github.com/pinotql/pinotql/internal/session"
	"github.com/pinotql/pinotql/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	SessionFile string
	CachePath   string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan.yaml>",
		Short: "Translate a plan fragment into PQL",
		Long: `Translate a relational plan fragment into the store's native PQL.

The plan file is validated against the embedded schema, translated
bottom-up, and the generated query is printed as text or JSON. When the
fragment is not expressible in PQL the command exits with code 2 - the
engine would fall back to non-pushed-down execution.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionFile, "session", "", "YAML session configuration (defaults apply when omitted)")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "SQLite cache for generated queries")

	return cmd
}

func runCompile(opts *CompileOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess := session.Default()
	if opts.SessionFile != "" {
		loaded, err := session.Load(opts.SessionFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "load session", err)
		}
		sess = loaded
	}

	root, err := LoadPlan(planPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load plan", err)
	}

	fingerprint := plan.Fingerprint(root,
		fmt.Sprintf("preferBroker=%t", sess.PreferBrokerQueries),
		fmt.Sprintf("nonAggregateLimit=%d", sess.NonAggregateLimitForBrokerQueries),
		fmt.Sprintf("topNLarge=%d", sess.TopNLarge),
	)
	formatter.VerboseLog("plan fingerprint: %s", fingerprint)

	var cache *store.Store
	if opts.CachePath != "" {
		cache, err = store.Open(opts.CachePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "open cache", err)
		}
		defer cache.Close()

		cached, found, err := cache.Get(context.Background(), fingerprint)
		if err != nil {
			return WrapExitError(ExitCommandError, "read cache", err)
		}
		if found {
			formatter.VerboseLog("cache hit")
			return printGenerated(formatter, cached)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: verboseLevel(opts.Verbose)}))
	generator := pql.NewGenerator(logger)
	result, ok := generator.Generate(root, sess)
	if !ok {
		return NewExitError(ExitNoPushdown, "plan fragment is not expressible in PQL")
	}

	if cache != nil {
		if err := cache.Put(context.Background(), fingerprint, &result.PQL); err != nil {
			return WrapExitError(ExitCommandError, "write cache", err)
		}
	}
	return printGenerated(formatter, &result.PQL)
}

func printGenerated(f *OutputFormatter, generated *pql.GeneratedPQL) error {
	if f.Format == "json" {
		return f.PrintJSON(generated)
	}
	f.Printf("%s\n", generated.Query)
	return nil
}

func verboseLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
