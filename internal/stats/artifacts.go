package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"esnkit/internal/network"
	"esnkit/internal/readout"
	"esnkit/internal/reservoir"
)

const runIndexFile = "run_index.json"

// RunConfig is the resolved configuration of one training run.
type RunConfig struct {
	RunID             string                     `json:"run_id"`
	Name              string                     `json:"name,omitempty"`
	DataPath          string                     `json:"data_path,omitempty"`
	InputColumns      []string                   `json:"input_columns,omitempty"`
	OutputColumns     []string                   `json:"output_columns,omitempty"`
	FieldsPerStep     int                        `json:"fields_per_step,omitempty"`
	TaskType          string                     `json:"task_type"`
	BootSamples       int                        `json:"boot_samples"`
	NormalizerReserve float64                    `json:"normalizer_reserve"`
	Seed              int64                      `json:"seed"`
	Workers           int                        `json:"workers"`
	RouteInput        bool                       `json:"route_input"`
	Trainer           string                     `json:"trainer"`
	RidgeLambda       float64                    `json:"ridge_lambda,omitempty"`
	RPropEpochs       int                        `json:"rprop_epochs,omitempty"`
	Instances         []network.InstanceSettings `json:"instances"`
	Readout           readout.Settings           `json:"readout"`
}

type RunArtifacts struct {
	Config     RunConfig                    `json:"config"`
	Clusters   []readout.ClusterErrSnapshot `json:"clusters"`
	Reservoirs []reservoir.Stats            `json:"reservoirs"`
	Validation readout.ValidationBundle     `json:"-"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Name         string  `json:"name"`
	TaskType     string  `json:"task_type"`
	Samples      int     `json:"samples"`
	Predictors   int     `json:"predictors"`
	Seed         int64   `json:"seed"`
	Workers      int     `json:"workers"`
	MeanValidErr float64 `json:"mean_validation_err"`
	CreatedAtUTC string  `json:"created_at_utc"`
	StoreBackend string  `json:"store_backend,omitempty"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "clusters.json"), artifacts.Clusters); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "reservoirs.json"), artifacts.Reservoirs); err != nil {
		return "", err
	}
	fields := make([]string, len(artifacts.Config.Readout.Fields))
	for i, field := range artifacts.Config.Readout.Fields {
		fields[i] = field.Name
	}
	if err := WriteValidationSeries(runDir, fields, artifacts.Validation); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "clusters.json", "reservoirs.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	validationPath := filepath.Join(src, "validation.csv")
	if _, err := os.Stat(validationPath); err == nil {
		if err := copyFile(validationPath, filepath.Join(dst, "validation.csv")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadClusters(baseDir, runID string) ([]readout.ClusterErrSnapshot, bool, error) {
	var clusters []readout.ClusterErrSnapshot
	ok, err := readJSON(filepath.Join(baseDir, runID, "clusters.json"), &clusters)
	return clusters, ok, err
}

func ReadReservoirStats(baseDir, runID string) ([]reservoir.Stats, bool, error) {
	var out []reservoir.Stats
	ok, err := readJSON(filepath.Join(baseDir, runID, "reservoirs.json"), &out)
	return out, ok, err
}

// WriteValidationSeries writes one row per sample with, for every field, the
// validation fold, the held-out computed value and the ideal value.
func WriteValidationSeries(runDir string, fields []string, bundle readout.ValidationBundle) error {
	path := filepath.Join(runDir, "validation.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	foldOf := make([][]int, len(bundle.Folds))
	for f, folds := range bundle.Folds {
		foldOf[f] = make([]int, len(bundle.Computed))
		for fold, samples := range folds {
			for _, sample := range samples {
				if sample < len(foldOf[f]) {
					foldOf[f][sample] = fold
				}
			}
		}
	}

	writer := csv.NewWriter(file)
	header := []string{"sample"}
	for _, name := range fields {
		header = append(header, name+"_fold", name+"_computed", name+"_ideal")
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := range bundle.Computed {
		record := []string{strconv.Itoa(i)}
		for f := range fields {
			fold := 0
			if f < len(foldOf) {
				fold = foldOf[f][i]
			}
			record = append(record,
				strconv.Itoa(fold),
				strconv.FormatFloat(bundle.Computed[i][f], 'f', -1, 64),
				strconv.FormatFloat(bundle.Ideal[i][f], 'f', -1, 64),
			)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadValidationErrors returns the absolute validation error of one field per
// sample.
func ReadValidationErrors(baseDir, runID, field string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "validation.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	computedCol, idealCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case field + "_computed":
			computedCol = i
		case field + "_ideal":
			idealCol = i
		}
	}
	if computedCol < 0 || idealCol < 0 {
		return nil, false, fmt.Errorf("validation series has no field %s", field)
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		computed, err := strconv.ParseFloat(record[computedCol], 64)
		if err != nil {
			return nil, false, err
		}
		ideal, err := strconv.ParseFloat(record[idealCol], 64)
		if err != nil {
			return nil, false, err
		}
		diff := computed - ideal
		if diff < 0 {
			diff = -diff
		}
		series = append(series, diff)
	}
	return series, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
