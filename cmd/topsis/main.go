package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/topsisrun/internal/application"
	"github.com/sawpanic/topsisrun/internal/config"
	applog "github.com/sawpanic/topsisrun/internal/log"
	"github.com/sawpanic/topsisrun/internal/metrics"
	"github.com/sawpanic/topsisrun/internal/table"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

const (
	appName   = "topsis"
	version   = "v1.2.0"
	usageLine = "Usage: topsis <InputDataFile> <Weights> <Impacts> <OutputResultFileName>"
)

var errUsage = errors.New("wrong number of arguments")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code. User
// facing messages go to stdout, logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(resolveArgs(root, args))
	root.SetOut(stdout)
	root.SetErr(stdout)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stdout, usageLine)
			return 1
		}
		fmt.Fprintf(stdout, "Error: %s\n", err)
		return 1
	}
	return 0
}

// resolveArgs routes a four-argument invocation whose input file shares a
// subcommand's name to the rank command, so "topsis rank w i out.csv"
// reads the file "rank" when it exists.
func resolveArgs(root *cobra.Command, args []string) []string {
	if len(args) != 4 {
		return args
	}
	sub, _, err := root.Find(args[:1])
	if err != nil || sub == root {
		return args
	}
	if fi, err := os.Stat(args[0]); err != nil || !fi.Mode().IsRegular() {
		return args
	}
	return append([]string{"rank"}, args...)
}

// app carries flag values and the loaded configuration between cobra hooks.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	logLevel    string
	degenerate  string
	precision   int
	explainPath string

	cfg *config.Config
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "topsis <InputDataFile> <Weights> <Impacts> <OutputResultFileName>",
		Short:   "Rank alternatives in a CSV table with TOPSIS",
		Version: version,
		Long: `topsis ranks the rows of a CSV decision matrix by their relative closeness
to the ideal solution. The first column names each alternative, the remaining
columns are numeric criteria.

Weights and impacts are comma-separated, one per criteria column, e.g.
  topsis data.csv "1,1,1,2" "+,+,-,+" result.csv

Flags go before the input file; everything after it is positional, so a
leading "-" in the weights or impacts is read as data. An input file named
like a subcommand (rank, serve, history, config) is ranked when it exists.`,
		Args:              exactFour,
		RunE:              a.runRank,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default config/topsis.yaml if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	pf.StringVar(&a.degenerate, "degenerate", "", "Degenerate input policy (strict|fallback)")
	pf.IntVar(&a.precision, "precision", -1, "Score decimals in the output (-1 = shortest exact form)")

	rootCmd.Flags().StringVar(&a.explainPath, "explain", "", "Also write a JSON explanation of the ranking to this path")
	rootCmd.Flags().SetInterspersed(false)

	rankCmd := &cobra.Command{
		Use:   "rank <InputDataFile> <Weights> <Impacts> <OutputResultFileName>",
		Short: "Score a CSV file and write the ranked result",
		Args:  exactFour,
		RunE:  a.runRank,
	}
	rankCmd.Flags().StringVar(&a.explainPath, "explain", "", "Also write a JSON explanation of the ranking to this path")
	rankCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.historyCmd())
	rootCmd.AddCommand(a.configCmd())

	return rootCmd
}

func exactFour(_ *cobra.Command, args []string) error {
	if len(args) != 4 {
		return errUsage
	}
	return nil
}

// setup loads the configuration, applies flag overrides and configures
// logging. It runs after argument validation.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}

	a.applyOverrides(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := applog.Setup(cfg.Log.Level, cfg.Log.Format, a.stderr); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// applyOverrides copies explicitly set flags over the file configuration.
func (a *app) applyOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("degenerate") {
		cfg.Scoring.DegeneratePolicy = a.degenerate
	}
	if flags.Changed("precision") {
		cfg.Output.Precision = a.precision
	}
}

func (a *app) format() table.Format {
	return table.Format{
		Precision:   a.cfg.Output.Precision,
		ScoreColumn: a.cfg.Output.ScoreColumn,
		RankColumn:  a.cfg.Output.RankColumn,
	}
}

func (a *app) runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := []application.Option{
		application.WithScorer(topsis.NewScorer(topsis.WithPolicy(a.cfg.Policy()))),
		application.WithFormat(a.format()),
		application.WithMetrics(metrics.New(false)),
	}

	res, err := openResources(ctx, a.cfg, false)
	if err != nil {
		// history is optional for a single ranking
		log.Warn().Err(err).Msg("Run history unavailable, continuing without it")
	} else {
		defer res.Close()
		if res.store != nil {
			opts = append(opts, application.WithStore(res.store))
		}
	}

	_, err = application.NewRanker(opts...).Rank(ctx, application.Request{
		InputPath:   args[0],
		Weights:     args[1],
		Impacts:     args[2],
		OutputPath:  args[3],
		ExplainPath: a.explainPath,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Success: Result written to %s\n", args[3])
	return nil
}
