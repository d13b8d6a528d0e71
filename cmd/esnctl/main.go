package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"esnkit/internal/storage"
	"esnkit/pkg/esnkit"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
	defaultDB  = "esnkit.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "demo":
		return runDemo(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	fd := os.Stderr.Fd()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd),
		FullTimestamp: true,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func newClient(storeKind, dbPath string, verbose bool) (*esnkit.Client, error) {
	return esnkit.New(esnkit.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     newLogger(verbose),
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	name := fs.String("name", "run", "run name")
	dataPath := fs.String("data", "", "CSV data file")
	inputs := fs.String("inputs", "", "comma separated input columns (time series)")
	outputs := fs.String("outputs", "", "comma separated output columns")
	fieldsPerStep := fs.Int("fields-per-step", 0, "input fields per pattern step (classification)")
	taskType := fs.String("task", "prediction", "task type: prediction|classification")
	boot := fs.Int("boot", 0, "boot samples excluded from training")
	reserve := fs.Float64("reserve", 0, "normalizer reserve ratio")
	seed := fs.Int64("seed", 1, "rng seed (negative uses the clock)")
	workers := fs.Int("workers", 0, "neuron workers per reservoir (0 keeps config)")
	routeInput := fs.Bool("route-input", false, "route normalized input to the readout")
	trainer := fs.String("trainer", "ridge", "readout trainer: ridge|rprop")
	ridgeLambda := fs.Float64("ridge-lambda", 0, "ridge regularization (0 uses default)")
	rpropEpochs := fs.Int("rprop-epochs", 0, "rprop epochs (0 uses default)")
	size := fs.Int("size", 0, "reservoir size applied to every instance")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	flagValues := map[string]any{
		"run-id":          *runID,
		"name":            *name,
		"data":            *dataPath,
		"inputs":          *inputs,
		"outputs":         *outputs,
		"fields-per-step": *fieldsPerStep,
		"task":            *taskType,
		"boot":            *boot,
		"reserve":         *reserve,
		"seed":            *seed,
		"workers":         *workers,
		"route-input":     *routeInput,
		"trainer":         *trainer,
		"ridge-lambda":    *ridgeLambda,
		"rprop-epochs":    *rpropEpochs,
		"size":            *size,
	}
	if *configPath == "" {
		req = esnkit.RunRequest{
			RunID:         *runID,
			Name:          *name,
			DataPath:      *dataPath,
			InputColumns:  splitList(*inputs),
			OutputColumns: splitList(*outputs),
			FieldsPerStep: *fieldsPerStep,
			TaskType:      *taskType,
			BootSamples:   *boot,
			Seed:          *seed,
			Workers:       *workers,
			RouteInput:    *routeInput,
			Trainer:       *trainer,
			RidgeLambda:   *ridgeLambda,
			RPropEpochs:   *rpropEpochs,
		}
		if setFlags["reserve"] {
			req.NormalizerReserve = *reserve
		}
		if setFlags["size"] {
			if err := overrideFromFlags(&req, map[string]bool{"size": true}, flagValues); err != nil {
				return err
			}
		}
	} else if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}
	if req.DataPath == "" {
		return errors.New("run requires --data or data_path in config")
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	printRunSummary(summary)
	return nil
}

func runDemo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	steps := fs.Int("steps", 600, "synthetic series length")
	size := fs.Int("size", 60, "reservoir size")
	boot := fs.Int("boot", 50, "boot samples excluded from training")
	seed := fs.Int64("seed", 1, "rng seed")
	trainer := fs.String("trainer", "ridge", "readout trainer: ridge|rprop")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps <= *boot+10 {
		return fmt.Errorf("steps must exceed boot by more than 10: steps=%d boot=%d", *steps, *boot)
	}

	series := demoSeries(*steps)
	reservoirSettings := esnkit.DefaultReservoirSettings()
	reservoirSettings.Name = "demo"
	reservoirSettings.Size = *size

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, esnkit.RunRequest{
		Name:          "demo",
		Series:        &series,
		OutputColumns: []string{"wave"},
		BootSamples:   *boot,
		Seed:          *seed,
		Trainer:       *trainer,
		Instances:     []esnkit.InstanceSettings{{Reservoir: reservoirSettings}},
	})
	if err != nil {
		return err
	}
	printRunSummary(summary)
	return nil
}

// demoSeries is a two-tone wave where every step predicts the next value.
func demoSeries(steps int) esnkit.TimeSeriesBundle {
	wave := func(t int) float64 {
		x := float64(t)
		return math.Sin(0.2*x) + 0.5*math.Sin(0.311*x)
	}
	var b esnkit.TimeSeriesBundle
	for t := 0; t < steps; t++ {
		b.Inputs = append(b.Inputs, []float64{wave(t)})
		b.Outputs = append(b.Outputs, []float64{wave(t + 1)})
	}
	return b
}

func printRunSummary(summary esnkit.RunSummary) {
	fmt.Printf("run_id=%s samples=%s predictors=%d mean_valid_err=%.6f artifacts=%s\n",
		summary.RunID,
		humanize.Comma(int64(summary.Samples)),
		summary.Predictors,
		summary.MeanValidErr,
		summary.ArtifactsDir,
	)
	for _, c := range summary.Clusters {
		fmt.Printf("  field=%s task=%s units=%d mean_err=%.6f max_err=%.6f%s\n",
			c.Field, c.TaskType, c.NumOfUnits, c.MeanErr, c.MaxErr, binaryRate(c.BinaryErrRate))
	}
	if len(summary.Forecast) > 0 {
		fmt.Printf("  forecast=%v\n", summary.Forecast)
	}
}

func binaryRate(rate *float64) string {
	if rate == nil {
		return ""
	}
	return fmt.Sprintf(" binary_err_rate=%.4f", *rate)
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient("memory", "", false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	items, err := client.Runs(ctx, esnkit.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID        string  `json:"run_id"`
			CreatedAtUTC string  `json:"created_at_utc"`
			Name         string  `json:"name"`
			TaskType     string  `json:"task_type"`
			Seed         int64   `json:"seed"`
			Samples      int     `json:"samples"`
			Predictors   int     `json:"predictors"`
			MeanValidErr float64 `json:"mean_validation_err"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem(item))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, item := range items {
		created := item.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Printf("run_id=%s created=%q name=%s task=%s seed=%d samples=%s predictors=%d mean_valid_err=%.6f\n",
			item.RunID,
			created,
			item.Name,
			item.TaskType,
			item.Seed,
			humanize.Comma(int64(item.Samples)),
			item.Predictors,
			item.MeanValidErr,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	detail, err := client.Show(ctx, esnkit.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	fmt.Printf("run_id=%s name=%s task=%s seed=%d trainer=%s\n",
		detail.RunID, detail.Name, detail.TaskType, detail.Seed, detail.Trainer)
	for _, r := range detail.Reservoirs {
		fmt.Printf("  reservoir=%s size=%d topology=%s connections=%s avg_state=%.6f state_span=%.6f\n",
			r.Name, r.Size, r.Topology, humanize.Comma(int64(r.Connections)), r.AvgState, r.StateSpan)
	}
	for _, c := range detail.Clusters {
		fmt.Printf("  field=%s task=%s units=%d samples=%s mean_err=%.6f stddev_err=%.6f max_err=%.6f%s\n",
			c.Field, c.TaskType, c.NumOfUnits, humanize.Comma(int64(c.Samples)), c.MeanErr, c.StdDevErr, c.MaxErr, binaryRate(c.BinaryErrRate))
	}
	if len(detail.ErrSeries) > 0 {
		worst := 0.0
		for _, v := range detail.ErrSeries {
			worst = max(worst, v)
		}
		fmt.Printf("  validation_points=%s worst_err=%.6f\n", humanize.Comma(int64(len(detail.ErrSeries))), worst)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := newClient("memory", "", false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	summary, err := client.Export(ctx, esnkit.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: esnctl <run|demo|runs|show|export> [flags]", msg)
}
