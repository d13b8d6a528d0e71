// Package esnkit is the public entry point for training echo state networks
// and inspecting persisted runs.
package esnkit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"esnkit/internal/dataset"
	"esnkit/internal/mathx"
	"esnkit/internal/model"
	"esnkit/internal/network"
	"esnkit/internal/readout"
	"esnkit/internal/regression"
	"esnkit/internal/reservoir"
	"esnkit/internal/stats"
	"esnkit/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "esnkit.db"

	defaultTestDataRatio = 0.2
)

type (
	ReservoirSettings = reservoir.Settings
	InstanceSettings  = network.InstanceSettings
	FieldSettings     = readout.FieldSettings
	TaskType          = readout.TaskType
	TimeSeriesBundle  = dataset.TimeSeriesBundle
	PatternBundle     = dataset.PatternBundle
	Interval          = mathx.Interval
)

// DefaultReservoirSettings returns the settings used when a run defines no
// reservoir instances.
func DefaultReservoirSettings() ReservoirSettings { return reservoir.DefaultSettings() }

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *logrus.Logger
}

type Client struct {
	store     storage.Store
	storeKind string
	logger    *logrus.Logger

	initOnce sync.Once
	initErr  error

	runsDir    string
	exportsDir string
}

// RunRequest describes one training run. Data comes either from DataPath
// (a CSV file) or from an in-memory Series/Patterns bundle.
type RunRequest struct {
	RunID             string
	Name              string
	DataPath          string
	InputColumns      []string
	OutputColumns     []string
	FieldsPerStep     int
	Series            *TimeSeriesBundle
	Patterns          *PatternBundle
	TaskType          string
	BootSamples       int
	NormalizerReserve float64
	Seed              int64
	Workers           int
	RouteInput        bool
	Trainer           string
	RidgeLambda       float64
	RPropEpochs       int
	Instances         []InstanceSettings
	DataRange         Interval
	Fields            []FieldSettings
}

type ClusterSummary struct {
	Field         string
	TaskType      string
	NumOfUnits    int
	Samples       int
	MeanErr       float64
	StdDevErr     float64
	MaxErr        float64
	BinaryErrRate *float64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Samples      int
	Predictors   int
	Clusters     []ClusterSummary
	MeanValidErr float64
	// Forecast is the next-step output in data units, set when the series
	// carries the input that follows its last step.
	Forecast []float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Name         string
	TaskType     string
	Seed         int64
	Samples      int
	Predictors   int
	MeanValidErr float64
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	RunID      string
	Name       string
	TaskType   string
	Seed       int64
	Trainer    string
	Reservoirs []model.ReservoirSummary
	Clusters   []ClusterSummary
	ErrSeries  []float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		storeKind:  storeKind,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Run loads and normalizes the data, composes the network, collects
// predictors, trains the readout and persists the results.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	req, err := normalizeRequest(req)
	if err != nil {
		return RunSummary{}, err
	}
	log := c.logger.WithFields(logrus.Fields{
		"run_id":    req.RunID,
		"name":      req.Name,
		"task_type": req.TaskType,
		"seed":      req.Seed,
	})

	taskType, err := readout.ParseTaskType(req.TaskType)
	if err != nil {
		return RunSummary{}, err
	}
	inputs, outputs, err := loadData(&req, taskType)
	if err != nil {
		return RunSummary{}, err
	}

	settings := network.Settings{
		TaskType:            taskType,
		InputFieldCount:     inputs,
		Instances:           defaultInstances(req.Instances, inputs, req.Workers),
		RouteInputToReadout: req.RouteInput,
		Seed:                req.Seed,
		Readout: readout.Settings{
			DataRange: req.DataRange,
			Fields:    defaultFields(req.Fields, req.OutputColumns, outputs),
		},
	}
	net, err := network.New(settings)
	if err != nil {
		return RunSummary{}, fmt.Errorf("compose network: %w", err)
	}
	log.WithFields(logrus.Fields{
		"reservoirs": len(settings.Instances),
		"predictors": net.NumOfPredictors(),
	}).Info("network composed")

	progress := func(total, processed int) {
		if processed == total || processed%max(1, total/10) == 0 {
			log.WithFields(logrus.Fields{"processed": processed, "total": total}).Debug("collecting predictors")
		}
	}
	var (
		rsi    network.RegressionInput
		series dataset.TimeSeriesBundle
		norms  *dataset.Normalizers
	)
	if taskType == readout.TaskPrediction {
		series, norms, err = normalizeSeries(*req.Series, req.DataRange, req.NormalizerReserve)
		if err != nil {
			return RunSummary{}, err
		}
		rsi, err = net.PrepareTimeSeriesInput(series, req.BootSamples, progress)
		if err != nil {
			return RunSummary{}, fmt.Errorf("prepare time series: %w", err)
		}
	} else {
		patterns, err := normalizePatterns(*req.Patterns, req.DataRange, req.NormalizerReserve)
		if err != nil {
			return RunSummary{}, err
		}
		rsi, err = net.PreparePatternInput(patterns, progress)
		if err != nil {
			return RunSummary{}, fmt.Errorf("prepare patterns: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return RunSummary{}, err
	}

	trainer, err := trainerFromRequest(req)
	if err != nil {
		return RunSummary{}, err
	}
	validation, err := net.BuildReadout(rsi, trainer, func(field string, fold, folds int) {
		log.WithFields(logrus.Fields{"field": field, "fold": fold, "folds": folds}).Debug("training readout unit")
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("build readout: %w", err)
	}
	var forecast []float64
	if series.Next != nil {
		if forecast, err = nextForecast(net, norms, series.Next); err != nil {
			return RunSummary{}, err
		}
		log.WithField("forecast", forecast).Debug("next step forecast")
	}
	if err := ctx.Err(); err != nil {
		return RunSummary{}, err
	}

	clusterStats := net.ClusterErrStatistics()
	snapshots := make([]readout.ClusterErrSnapshot, len(clusterStats))
	clusters := make([]ClusterSummary, len(clusterStats))
	records := make([]model.ClusterSummary, len(clusterStats))
	var meanErr mathx.WeightedAvg
	for i, cs := range clusterStats {
		snapshots[i] = cs.Snapshot()
		records[i] = clusterRecord(snapshots[i])
		clusters[i] = clusterFromRecord(records[i])
		meanErr.Add(snapshots[i].PrecisionErr.Mean, 1)
	}

	now := time.Now().UTC()
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              req.RunID,
		Name:            req.Name,
		TaskType:        string(taskType),
		Seed:            req.Seed,
		Samples:         len(rsi.Predictors),
		Predictors:      net.NumOfPredictors(),
		Trainer:         req.Trainer,
		CreatedAt:       now,
		Reservoirs:      reservoirSummaries(rsi.ReservoirStats),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveClusterSummaries(ctx, run.ID, records); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveErrorSeries(ctx, run.ID, firstFieldErrors(validation)); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:     runConfig(req, net.Settings()),
		Clusters:   snapshots,
		Reservoirs: rsi.ReservoirStats,
		Validation: validation,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        run.ID,
		Name:         run.Name,
		TaskType:     run.TaskType,
		Samples:      run.Samples,
		Predictors:   run.Predictors,
		Seed:         run.Seed,
		Workers:      req.Workers,
		MeanValidErr: meanErr.Avg(),
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		StoreBackend: c.storeKind,
	}); err != nil {
		return RunSummary{}, err
	}
	log.WithFields(logrus.Fields{
		"samples":        run.Samples,
		"mean_valid_err": meanErr.Avg(),
		"artifacts":      runDir,
	}).Info("run completed")

	return RunSummary{
		RunID:        run.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Samples:      run.Samples,
		Predictors:   run.Predictors,
		Clusters:     clusters,
		MeanValidErr: meanErr.Avg(),
		Forecast:     forecast,
	}, nil
}

// nextForecast continues the trained network by one step from its state after
// the last training sample and maps the output back to data units.
func nextForecast(net *network.Network, norms *dataset.Normalizers, next []float64) ([]float64, error) {
	out, err := net.Compute(next)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	natural, err := norms.NaturalizeOutput(out)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return natural, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Name:         e.Name,
			TaskType:     e.TaskType,
			Seed:         e.Seed,
			Samples:      e.Samples,
			Predictors:   e.Predictors,
			MeanValidErr: e.MeanValidErr,
		})
	}
	return out, nil
}

// Show returns the persisted details of a run. Runs missing from the store
// (for example, written by another process with a memory store) are read
// back from their artifacts directory.
func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	if err := c.Init(ctx); err != nil {
		return RunDetail{}, err
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		detail := RunDetail{
			RunID:      run.ID,
			Name:       run.Name,
			TaskType:   run.TaskType,
			Seed:       run.Seed,
			Trainer:    run.Trainer,
			Reservoirs: run.Reservoirs,
		}
		records, _, err := c.store.GetClusterSummaries(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		for _, record := range records {
			detail.Clusters = append(detail.Clusters, clusterFromRecord(record))
		}
		if detail.ErrSeries, _, err = c.store.GetErrorSeries(ctx, runID); err != nil {
			return RunDetail{}, err
		}
		return detail, nil
	}

	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}
	detail := RunDetail{
		RunID:    cfg.RunID,
		Name:     cfg.Name,
		TaskType: cfg.TaskType,
		Seed:     cfg.Seed,
		Trainer:  cfg.Trainer,
	}
	reservoirStats, _, err := stats.ReadReservoirStats(c.runsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	detail.Reservoirs = reservoirSummaries(reservoirStats)
	snapshots, _, err := stats.ReadClusters(c.runsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	for _, snapshot := range snapshots {
		detail.Clusters = append(detail.Clusters, clusterFromRecord(clusterRecord(snapshot)))
	}
	if len(cfg.Readout.Fields) > 0 {
		if detail.ErrSeries, _, err = stats.ReadValidationErrors(c.runsDir, runID, cfg.Readout.Fields[0].Name); err != nil {
			return RunDetail{}, err
		}
	}
	return detail, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func normalizeRequest(req RunRequest) (RunRequest, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Name == "" {
		req.Name = "run"
	}
	if req.TaskType == "" {
		req.TaskType = string(readout.TaskPrediction)
	}
	if req.Trainer == "" {
		req.Trainer = "ridge"
	}
	if req.DataRange.Span() == 0 {
		req.DataRange = mathx.DefaultNormRange
	}
	if req.BootSamples < 0 {
		return RunRequest{}, fmt.Errorf("boot samples must be >= 0: %d", req.BootSamples)
	}
	return req, nil
}

// loadData fills the request bundle from DataPath when no in-memory bundle
// was given and returns the input and output widths.
func loadData(req *RunRequest, taskType readout.TaskType) (int, int, error) {
	if taskType == readout.TaskPrediction {
		if req.Series == nil {
			if strings.TrimSpace(req.DataPath) == "" {
				return 0, 0, errors.New("data path or in-memory series is required")
			}
			table, err := dataset.LoadCSV(req.DataPath)
			if err != nil {
				return 0, 0, err
			}
			series, err := dataset.TimeSeriesFromTable(table, req.InputColumns, req.OutputColumns)
			if err != nil {
				return 0, 0, err
			}
			req.Series = &series
		}
		if err := req.Series.Validate(); err != nil {
			return 0, 0, err
		}
		return len(req.Series.Inputs[0]), len(req.Series.Outputs[0]), nil
	}

	if req.Patterns == nil {
		if strings.TrimSpace(req.DataPath) == "" {
			return 0, 0, errors.New("data path or in-memory patterns are required")
		}
		table, err := dataset.LoadCSV(req.DataPath)
		if err != nil {
			return 0, 0, err
		}
		perStep := req.FieldsPerStep
		if perStep <= 0 {
			perStep = 1
		}
		patterns, err := dataset.PatternsFromTable(table, req.OutputColumns, perStep)
		if err != nil {
			return 0, 0, err
		}
		req.Patterns = &patterns
	}
	if err := req.Patterns.Validate(); err != nil {
		return 0, 0, err
	}
	return len(req.Patterns.Patterns[0][0]), len(req.Patterns.Outputs[0]), nil
}

func normalizeSeries(series dataset.TimeSeriesBundle, dataRange mathx.Interval, reserve float64) (dataset.TimeSeriesBundle, *dataset.Normalizers, error) {
	norms, err := dataset.FitTimeSeries(series, dataRange, reserve, false)
	if err != nil {
		return dataset.TimeSeriesBundle{}, nil, err
	}
	normalized, err := norms.NormalizeTimeSeries(series)
	if err != nil {
		return dataset.TimeSeriesBundle{}, nil, err
	}
	return normalized, norms, nil
}

func normalizePatterns(patterns dataset.PatternBundle, dataRange mathx.Interval, reserve float64) (dataset.PatternBundle, error) {
	norms, err := dataset.FitPatterns(patterns, dataRange, reserve, false)
	if err != nil {
		return dataset.PatternBundle{}, err
	}
	return norms.NormalizePatterns(patterns)
}

func defaultInstances(instances []InstanceSettings, inputs, workers int) []InstanceSettings {
	if len(instances) == 0 {
		instances = []InstanceSettings{{Reservoir: reservoir.DefaultSettings()}}
	}
	out := make([]InstanceSettings, len(instances))
	for i, inst := range instances {
		if len(inst.InputFieldMapping) == 0 {
			inst.InputFieldMapping = make([]int, inputs)
			for j := range inst.InputFieldMapping {
				inst.InputFieldMapping[j] = j
			}
		}
		if inst.Reservoir.Name == "" {
			inst.Reservoir.Name = fmt.Sprintf("reservoir-%d", i+1)
		}
		if inst.Reservoir.Workers == 0 {
			inst.Reservoir.Workers = workers
		}
		out[i] = inst
	}
	return out
}

func defaultFields(fields []FieldSettings, names []string, outputs int) []FieldSettings {
	if len(fields) > 0 {
		return fields
	}
	out := make([]FieldSettings, outputs)
	for i := range out {
		name := fmt.Sprintf("y%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		out[i] = FieldSettings{Name: name, TestDataRatio: defaultTestDataRatio}
	}
	return out
}

func trainerFromRequest(req RunRequest) (readout.Trainer, error) {
	switch req.Trainer {
	case "ridge":
		return regression.RidgeTrainer{Lambda: req.RidgeLambda}, nil
	case "rprop":
		return regression.RPropTrainer{Epochs: req.RPropEpochs, Workers: req.Workers}, nil
	default:
		return nil, fmt.Errorf("unsupported trainer: %s", req.Trainer)
	}
}

func runConfig(req RunRequest, settings network.Settings) stats.RunConfig {
	return stats.RunConfig{
		RunID:             req.RunID,
		Name:              req.Name,
		DataPath:          req.DataPath,
		InputColumns:      req.InputColumns,
		OutputColumns:     req.OutputColumns,
		FieldsPerStep:     req.FieldsPerStep,
		TaskType:          string(settings.TaskType),
		BootSamples:       req.BootSamples,
		NormalizerReserve: req.NormalizerReserve,
		Seed:              req.Seed,
		Workers:           req.Workers,
		RouteInput:        req.RouteInput,
		Trainer:           req.Trainer,
		RidgeLambda:       req.RidgeLambda,
		RPropEpochs:       req.RPropEpochs,
		Instances:         settings.Instances,
		Readout:           settings.Readout,
	}
}

func clusterRecord(s readout.ClusterErrSnapshot) model.ClusterSummary {
	return model.ClusterSummary{
		VersionedRecord: storage.CurrentVersion(),
		Field:           s.Field,
		TaskType:        string(s.TaskType),
		NumOfUnits:      s.NumOfUnits,
		Samples:         s.PrecisionErr.Count,
		MeanErr:         s.PrecisionErr.Mean,
		StdDevErr:       s.PrecisionErr.StdDev,
		MaxErr:          s.PrecisionErr.Max,
		BinaryErrRate:   s.BinaryErrRate,
	}
}

func clusterFromRecord(r model.ClusterSummary) ClusterSummary {
	return ClusterSummary{
		Field:         r.Field,
		TaskType:      r.TaskType,
		NumOfUnits:    r.NumOfUnits,
		Samples:       r.Samples,
		MeanErr:       r.MeanErr,
		StdDevErr:     r.StdDevErr,
		MaxErr:        r.MaxErr,
		BinaryErrRate: r.BinaryErrRate,
	}
}

func reservoirSummaries(in []reservoir.Stats) []model.ReservoirSummary {
	out := make([]model.ReservoirSummary, len(in))
	for i, s := range in {
		out[i] = model.ReservoirSummary{
			Name:        s.Name,
			Size:        s.Size,
			Topology:    string(s.Topology),
			Connections: s.Connections,
			AvgState:    s.NeuronsAvgStates.Mean,
			StateSpan:   s.NeuronsStateSpans.Mean,
		}
	}
	return out
}

func firstFieldErrors(bundle readout.ValidationBundle) []float64 {
	out := make([]float64, len(bundle.Computed))
	for i := range bundle.Computed {
		diff := bundle.Computed[i][0] - bundle.Ideal[i][0]
		if diff < 0 {
			diff = -diff
		}
		out[i] = diff
	}
	return out
}
