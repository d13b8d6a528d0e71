package esnkit

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, runsDir string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    runsDir,
		ExportsDir: filepath.Join(t.TempDir(), "exports"),
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sineSeries(steps int) *TimeSeriesBundle {
	series := &TimeSeriesBundle{}
	for i := 0; i < steps; i++ {
		series.Inputs = append(series.Inputs, []float64{math.Sin(0.25 * float64(i))})
		series.Outputs = append(series.Outputs, []float64{math.Sin(0.25 * float64(i+1))})
	}
	return series
}

func smallInstances() []InstanceSettings {
	res := DefaultReservoirSettings()
	res.Name = "main"
	res.Size = 25
	return []InstanceSettings{{Reservoir: res}}
}

func TestRunPersistsAndLists(t *testing.T) {
	ctx := context.Background()
	runsDir := t.TempDir()
	client := newTestClient(t, runsDir)

	summary, err := client.Run(ctx, RunRequest{
		Name:        "sine",
		Series:      sineSeries(160),
		BootSamples: 10,
		Seed:        5,
		Instances:   smallInstances(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Samples != 150 || summary.Predictors != 25 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Clusters) != 1 || summary.Clusters[0].Field != "y1" || summary.Clusters[0].Samples != 150 {
		t.Fatalf("unexpected clusters: %+v", summary.Clusters)
	}
	if summary.MeanValidErr > 0.1 {
		t.Fatalf("expected small validation error, got %f", summary.MeanValidErr)
	}
	if summary.Forecast != nil {
		t.Fatalf("in-memory series without a next input must not forecast: %v", summary.Forecast)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "validation.csv")); err != nil {
		t.Fatalf("expected validation artifact: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Name != "sine" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	detail, err := client.Show(ctx, ShowRequest{Latest: true})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if detail.RunID != summary.RunID || detail.Trainer != "ridge" || len(detail.ErrSeries) != 150 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if len(detail.Reservoirs) != 1 || detail.Reservoirs[0].Name != "main" {
		t.Fatalf("unexpected reservoirs: %+v", detail.Reservoirs)
	}

	exported, err := client.Export(ctx, ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestShowFallsBackToArtifacts(t *testing.T) {
	ctx := context.Background()
	runsDir := t.TempDir()
	first := newTestClient(t, runsDir)
	summary, err := first.Run(ctx, RunRequest{
		RunID:     "fixed-run",
		Series:    sineSeries(80),
		Seed:      2,
		Instances: smallInstances(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	second := newTestClient(t, runsDir)
	detail, err := second.Show(ctx, ShowRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if detail.RunID != "fixed-run" || len(detail.Clusters) != 1 || len(detail.ErrSeries) != 80 {
		t.Fatalf("unexpected detail from artifacts: %+v", detail)
	}
	if _, err := second.Show(ctx, ShowRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestRunFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	var b strings.Builder
	b.WriteString("t,level\n")
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "%d,%f\n", i, 10+5*math.Sin(0.3*float64(i)))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	client := newTestClient(t, t.TempDir())
	summary, err := client.Run(context.Background(), RunRequest{
		DataPath:      path,
		InputColumns:  []string{"level"},
		OutputColumns: []string{"level"},
		BootSamples:   5,
		Seed:          9,
		Instances:     smallInstances(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Samples != 114 || summary.Clusters[0].Field != "level" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// The last CSV row feeds one step past the training data.
	if len(summary.Forecast) != 1 {
		t.Fatalf("expected one forecast value, got %v", summary.Forecast)
	}
	want := 10 + 5*math.Sin(0.3*120)
	if math.Abs(summary.Forecast[0]-want) > 1.5 {
		t.Fatalf("forecast in data units: got %f want ~%f", summary.Forecast[0], want)
	}
}

func TestRunClassificationPatterns(t *testing.T) {
	patterns := &PatternBundle{}
	for i := 0; i < 40; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		patterns.Patterns = append(patterns.Patterns, [][]float64{{0.1 * sign}, {0.9 * sign}})
		patterns.Outputs = append(patterns.Outputs, []float64{sign})
	}
	client := newTestClient(t, t.TempDir())
	summary, err := client.Run(context.Background(), RunRequest{
		TaskType:   "classification",
		Patterns:   patterns,
		RouteInput: true,
		Seed:       4,
		Instances:  smallInstances(),
		Fields:     []FieldSettings{{Name: "class", TestDataRatio: 0.25}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	cluster := summary.Clusters[0]
	if cluster.NumOfUnits != 4 || cluster.BinaryErrRate == nil {
		t.Fatalf("unexpected classification cluster: %+v", cluster)
	}
	if *cluster.BinaryErrRate > 0.1 {
		t.Fatalf("expected separable classes, err rate=%f", *cluster.BinaryErrRate)
	}
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	ctx := context.Background()
	tests := map[string]RunRequest{
		"no_data":     {},
		"bad_trainer": {Series: sineSeries(40), Trainer: "svm", Instances: smallInstances()},
		"bad_task":    {Series: sineSeries(40), TaskType: "clustering"},
		"boot_too_long": {
			Series:      sineSeries(20),
			BootSamples: 20,
			Instances:   smallInstances(),
		},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := client.Run(ctx, req); err == nil {
				t.Fatal("expected run error")
			}
		})
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting export selector error")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
}

func TestRunLogsOneBasedFolds(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    t.TempDir(),
		ExportsDir: t.TempDir(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if _, err := client.Run(context.Background(), RunRequest{
		Series:      sineSeries(120),
		BootSamples: 10,
		Seed:        2,
		Instances:   smallInstances(),
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := map[int]bool{}
	for _, entry := range hook.AllEntries() {
		if entry.Message != "training readout unit" {
			continue
		}
		fold, folds := entry.Data["fold"].(int), entry.Data["folds"].(int)
		if fold < 1 || fold > folds {
			t.Fatalf("fold %d outside [1, %d]", fold, folds)
		}
		seen[fold] = true
	}
	if len(seen) == 0 || !seen[1] {
		t.Fatalf("expected fold progress starting at 1, got %v", seen)
	}
}
