package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"esnkit/internal/mathx"
	"esnkit/internal/readout"
	"esnkit/internal/reservoir"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:         runID,
			Name:          "sine",
			InputColumns:  []string{"x"},
			OutputColumns: []string{"x"},
			TaskType:      "prediction",
			BootSamples:   10,
			Seed:          1,
			Workers:       2,
			Trainer:       "ridge",
			Readout: readout.Settings{
				DataRange: mathx.DefaultNormRange,
				Fields:    []readout.FieldSettings{{Name: "next", TestDataRatio: 0.25}},
			},
		},
		Clusters:   []readout.ClusterErrSnapshot{{Field: "next", TaskType: readout.TaskPrediction, NumOfUnits: 2}},
		Reservoirs: []reservoir.Stats{{Name: "main", Size: 10, Topology: reservoir.TopologyRing}},
		Validation: readout.ValidationBundle{
			Computed: [][]float64{{0.5}, {0.25}, {-0.5}, {0}},
			Ideal:    [][]float64{{0.4}, {0.5}, {-0.5}, {0.1}},
			Folds:    [][][]int{{{2, 0}, {1, 3}}},
		},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"config.json", "clusters.json", "reservoirs.json", "validation.csv"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected export error for missing run")
	}
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Name != "sine" || cfg.Readout.Fields[0].Name != "next" || cfg.Readout.DataRange.Max != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	clusters, ok, err := ReadClusters(baseDir, "run-1")
	if err != nil || !ok || len(clusters) != 1 || clusters[0].NumOfUnits != 2 {
		t.Fatalf("unexpected clusters: ok=%t err=%v %+v", ok, err, clusters)
	}

	reservoirs, ok, err := ReadReservoirStats(baseDir, "run-1")
	if err != nil || !ok || reservoirs[0].Topology != reservoir.TopologyRing {
		t.Fatalf("unexpected reservoir stats: ok=%t err=%v %+v", ok, err, reservoirs)
	}

	errs, ok, err := ReadValidationErrors(baseDir, "run-1", "next")
	if err != nil || !ok {
		t.Fatalf("read validation errors: ok=%t err=%v", ok, err)
	}
	want := []float64{0.1, 0.25, 0, 0.1}
	if len(errs) != len(want) {
		t.Fatalf("unexpected validation error count: %d", len(errs))
	}
	for i := range want {
		if math.Abs(errs[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d error=%f want=%f", i, errs[i], want[i])
		}
	}
	if _, _, err := ReadValidationErrors(baseDir, "run-1", "other"); err == nil {
		t.Fatal("expected unknown field error")
	}

	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-1",
		Name:         "sine",
		TaskType:     "prediction",
		Samples:      100,
		Seed:         1,
		Workers:      2,
		MeanValidErr: 0.05,
		CreatedAtUTC: "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-2",
		Name:         "sine",
		TaskType:     "prediction",
		Samples:      100,
		Seed:         2,
		Workers:      2,
		MeanValidErr: 0.04,
		CreatedAtUTC: "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-1",
		Name:         "sine",
		MeanValidErr: 0.01,
		CreatedAtUTC: "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].MeanValidErr != 0.01 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}
