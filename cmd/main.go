package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"race-strategy-engine/internal/app"
	"race-strategy-engine/internal/config"
	"race-strategy-engine/internal/db"
	"race-strategy-engine/internal/engine"
	"race-strategy-engine/internal/generator"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/parser"
	"race-strategy-engine/internal/processing"
	"race-strategy-engine/internal/report"
	"race-strategy-engine/internal/strategy"
	"race-strategy-engine/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	dbPath   string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pitstrat",
		Short: "Pit Strategy Engine - lap metrics, tire degradation and strategy ranking",
		Long: `A CLI tool for turning processed vehicle telemetry into per-lap metrics,
fitting a stress-scaled tire degradation model, and ranking candidate
pit strategies by estimated total race time. Runs can be stored in SQLite
and served over a REST API.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides db_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(compoundsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers flags over the loaded config and initialises logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.Init(os.Stderr, cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFile is the file the server watches, if any.
func configFile() string {
	if cfgPath != "" {
		return cfgPath
	}
	return os.Getenv(config.EnvConfigFile)
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

// openOutput returns the named file, or stdout for "" and "-".
func openOutput(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(name)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// analysisFlags are shared by analyze and sweep.
type analysisFlags struct {
	format     string
	output     string
	name       string
	simple     bool
	raw        bool
	save       bool
	targetLaps int
	pitLoss    float64
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Input format (csv, json, jsonl); inferred from the file name")
	cmd.Flags().StringVarP(&f.output, "output", "o", report.FormatTable, "Output format (table, json, yaml, csv)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Run name (default: input file name)")
	cmd.Flags().BoolVar(&f.simple, "simple", false, "Simple model: no warm-up exclusion, neutral stress scaling")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Input is a raw per-wheel CSV export; process it first")
	cmd.Flags().BoolVar(&f.save, "save", false, "Store the run in the database")
	cmd.Flags().IntVar(&f.targetLaps, "target-laps", 0, "Target race length in laps (overrides target_race_laps)")
	cmd.Flags().Float64Var(&f.pitLoss, "pit-loss", 0, "Pit stop time loss in seconds (overrides pit_loss_s)")
}

// apply folds flag overrides into cfg.
func (f *analysisFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.simple {
		cfg.Simple()
	}
	if cmd.Flags().Changed("target-laps") {
		cfg.TargetRaceLaps = f.targetLaps
	}
	if cmd.Flags().Changed("pit-loss") {
		cfg.PitLossS = f.pitLoss
	}
	return cfg.Validate()
}

// readSamples loads processed samples from input, processing raw exports on the fly.
func (f *analysisFlags) readSamples(ctx context.Context, input string) ([]models.TelemetrySample, error) {
	in, err := openInput(input)
	if err != nil {
		return nil, fmt.Errorf("error opening input: %w", err)
	}
	defer in.Close()

	if f.raw {
		return processing.ProcessCSV(in)
	}

	format := f.format
	if format == "" {
		format = parser.FormatFromFilename(input)
	}
	return parser.NewParser(format, logger.Named("parser")).Parse(ctx, in)
}

// runAnalysis is the shared body of analyze and sweep.
func runAnalysis(cmd *cobra.Command, args []string, f *analysisFlags, candidates func(*config.Config) ([]models.Strategy, error)) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := f.apply(cmd, cfg); err != nil {
		return err
	}

	eng, err := engine.New(cfg.EngineOptions())
	if err != nil {
		return err
	}

	input := ""
	if len(args) > 0 {
		input = args[0]
	}
	samples, err := f.readSamples(ctx, input)
	if err != nil {
		return err
	}

	strategies, err := candidates(cfg)
	if err != nil {
		return err
	}

	opts := []app.Option{app.WithLogger(logger.Named("analyze"))}
	if f.save {
		database, err := db.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		defer database.Close()
		opts = append(opts, app.WithStore(database))
	}

	name := f.name
	if name == "" {
		name = input
	}
	if name == "" || name == "-" {
		name = "stdin"
	}

	svc := app.NewService(eng, opts...)
	run, err := svc.Analyze(ctx, app.AnalyzeRequest{
		Name:       name,
		Samples:    samples,
		Strategies: strategies,
		Persist:    f.save,
	})
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout(), f.output, run.Report); err != nil {
		return err
	}
	if f.save {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s to %s\n", run.ID, cfg.DBPath)
	}
	return nil
}

// analyzeCmd runs the full pipeline over a processed telemetry file
func analyzeCmd() *cobra.Command {
	var f analysisFlags
	var strategiesFile string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Extract lap metrics, fit degradation and rank strategies",
		Long: `Reads processed telemetry (CSV, JSON or JSON lines; stdin when no file is
given) and prints per-lap metrics, the fitted degradation model and the
candidate strategies ranked by estimated total time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, args, &f, func(cfg *config.Config) ([]models.Strategy, error) {
				if strategiesFile == "" {
					return nil, nil
				}
				return parser.ParseStrategiesFile(strategiesFile)
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&strategiesFile, "strategies", "s", "", "YAML file of candidate strategies")
	return cmd
}

// sweepCmd ranks every one-stop pit lap for a compound pair
func sweepCmd() *cobra.Command {
	var f analysisFlags
	var first, second string

	cmd := &cobra.Command{
		Use:   "sweep [file]",
		Short: "Rank every one-stop pit lap for a compound pair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, args, &f, func(cfg *config.Config) ([]models.Strategy, error) {
				for _, c := range []string{first, second} {
					if _, ok := cfg.CompoundProfiles[c]; !ok {
						return nil, models.NewConfigurationError("compound", "unknown compound %q", c)
					}
				}
				plans := strategy.OneStopSweep(cfg.TargetRaceLaps, first, second)
				if len(plans) == 0 {
					return nil, models.NewConfigurationError("target_race_laps", "need at least 2 laps for a one-stop sweep")
				}
				return plans, nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&first, "first", strategy.CompoundSoft, "Opening stint compound")
	cmd.Flags().StringVar(&second, "second", strategy.CompoundHard, "Closing stint compound")
	return cmd
}

// processCmd converts a raw per-wheel export into processed telemetry
func processCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "process [raw-file]",
		Short: "Convert a raw per-wheel CSV export into processed telemetry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			input := ""
			if len(args) > 0 {
				input = args[0]
			}

			in, err := openInput(input)
			if err != nil {
				return fmt.Errorf("error opening input: %w", err)
			}
			defer in.Close()

			start := time.Now()
			samples, err := processing.ProcessCSV(in)
			if err != nil {
				return err
			}

			out, err := openOutput(output)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			defer out.Close()

			if err := processing.WriteCSV(out, samples); err != nil {
				return err
			}
			logger.Get().Info(cmd.Context(), "processed telemetry",
				logger.Int("samples", len(samples)),
				logger.String("output", output),
				logger.Any("elapsed", time.Since(start)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV (default stdout)")
	return cmd
}

// generateCmd writes synthetic processed telemetry
func generateCmd() *cobra.Command {
	gen := generator.DefaultConfig()
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic processed telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples := generator.Generate(gen)
			if len(samples) == 0 {
				return fmt.Errorf("nothing to generate: need laps > 0 and samples-per-lap >= 2")
			}

			out, err := openOutput(output)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			defer out.Close()

			if err := processing.WriteCSV(out, samples); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Generated %d samples over %d laps to %s\n", len(samples), gen.Laps, output)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&gen.Laps, "laps", "l", gen.Laps, "Number of laps")
	cmd.Flags().IntVar(&gen.SamplesPerLap, "samples-per-lap", gen.SamplesPerLap, "Samples per lap")
	cmd.Flags().Float64Var(&gen.BaseLapTimeS, "base", gen.BaseLapTimeS, "Base lap time in seconds")
	cmd.Flags().Float64Var(&gen.DegPerLapS, "deg", gen.DegPerLapS, "Lap time increase per lap in seconds")
	cmd.Flags().Float64Var(&gen.NoiseS, "noise", gen.NoiseS, "Lap time noise amplitude in seconds")
	cmd.Flags().Int64Var(&gen.Seed, "seed", gen.Seed, "Random seed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV (default stdout)")
	return cmd
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Pit Strategy Engine Statistics")
			fmt.Fprintln(w, "==============================")
			fmt.Fprintf(w, "  Runs:              %v\n", stats["total_runs"])
			fmt.Fprintf(w, "  Lap Metrics:       %v\n", stats["total_lap_metrics"])
			fmt.Fprintf(w, "  Strategy Results:  %v\n", stats["total_strategy_results"])
			fmt.Fprintf(w, "  Warnings:          %v\n", stats["total_warnings"])
			fmt.Fprintf(w, "  Database:          %s\n", cfg.DBPath)
			return nil
		},
	}
}

// compoundsCmd lists the configured compound profiles
func compoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compounds",
		Short: "List configured tire compounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.CompoundProfiles))
			for name := range cfg.CompoundProfiles {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPOUND\tDEG MULTIPLIER\tPACE OFFSET (s)\t")
			for _, name := range names {
				p := cfg.CompoundProfiles[name]
				fmt.Fprintf(tw, "%s\t%.2f\t%+.2f\t\n", name, p.DegradationMultiplier, p.PaceOffsetS)
			}
			return tw.Flush()
		},
	}
}

// runsCmd manages stored analysis runs
func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Stored analysis run commands",
	}

	var limit, offset int
	var listOutput string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *db.Database) error {
				runs, err := database.ListRuns(limit, offset)
				if err != nil {
					return fmt.Errorf("error listing runs: %w", err)
				}

				if listOutput == report.FormatJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(runs)
				}

				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs found. Use 'pitstrat analyze --save' to store one.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED\tLAPS\tDEG (s/lap)\tBEST\tTOTAL (s)\tWARNINGS\t")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\t%.2f\t%d\t\n",
						r.ID, r.Name, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Laps,
						r.EffectiveDegRateSPerLap, r.BestStrategy, r.BestTotalTimeS, r.Warnings)
				}
				return tw.Flush()
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum runs to return")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", report.FormatTable, "Output format (table, json)")

	var showOutput string
	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a stored run's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *db.Database) error {
				run, err := database.GetRun(args[0])
				if err != nil {
					return err
				}
				if showOutput == report.FormatTable {
					fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s) at %s, %d samples\n\n",
						run.ID, run.Name, run.CreatedAt.Format(time.RFC3339), run.Samples)
				}
				return report.Write(cmd.OutOrStdout(), showOutput, run.Report)
			})
		},
	}
	showCmd.Flags().StringVarP(&showOutput, "output", "o", report.FormatTable, "Output format (table, json, yaml, csv)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run-id]",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *db.Database) error {
				if err := database.DeleteRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}

// withDB opens the configured database for the duration of fn.
func withDB(fn func(*db.Database) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer database.Close()
	return fn(database)
}
