// Package readout trains and evaluates the cross-validated ensemble that maps
// reservoir predictors onto output fields.
package readout

import (
	"errors"
	"fmt"

	"esnkit/internal/mathx"
)

type trainedUnit struct {
	unit   Unit
	weight float64
}

// Layer holds one cluster of fold units per output field.
type Layer struct {
	settings   Settings
	predictors int
	clusters   [][]trainedUnit
	errStats   []*ClusterErrStats
}

// ValidationBundle collects the held-out prediction of every sample. Rows are
// in the original sample order; Folds lists, per field, the sample indices of
// each validation fold.
type ValidationBundle struct {
	Computed [][]float64
	Ideal    [][]float64
	Folds    [][][]int
}

func New(settings Settings) (*Layer, error) {
	for i := range settings.Fields {
		if settings.Fields[i].OutputRange == (mathx.Interval{}) {
			settings.Fields[i].OutputRange = settings.DataRange
		}
		if settings.Fields[i].TaskType == "" {
			settings.Fields[i].TaskType = TaskPrediction
		}
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Layer{settings: settings}, nil
}

func (l *Layer) Settings() Settings { return l.settings }

func (l *Layer) Built() bool { return l.clusters != nil }

// Build trains every cluster. Either all clusters are built or the layer is
// left unchanged.
func (l *Layer) Build(predictors, ideals [][]float64, trainer Trainer, progress ProgressFunc) (ValidationBundle, error) {
	if trainer == nil {
		return ValidationBundle{}, errors.New("trainer is required")
	}
	n := len(predictors)
	if n == 0 || n != len(ideals) {
		return ValidationBundle{}, fmt.Errorf("predictor/ideal sample count mismatch: %d vs %d", n, len(ideals))
	}
	width := len(predictors[0])
	fields := len(l.settings.Fields)
	for i := range predictors {
		if len(predictors[i]) != width {
			return ValidationBundle{}, fmt.Errorf("predictor row %d length mismatch: got=%d want=%d", i, len(predictors[i]), width)
		}
		if len(ideals[i]) != fields {
			return ValidationBundle{}, fmt.Errorf("ideal row %d length mismatch: got=%d want=%d", i, len(ideals[i]), fields)
		}
	}
	foldCounts := make([]int, fields)
	for f, field := range l.settings.Fields {
		k, err := foldLayout(field, n)
		if err != nil {
			return ValidationBundle{}, err
		}
		foldCounts[f] = k
	}

	rng := mathx.NewRand(l.settings.Seed)
	order := mathx.ShuffledIndices(rng, n)

	bundle := ValidationBundle{
		Computed: make([][]float64, n),
		Ideal:    make([][]float64, n),
		Folds:    make([][][]int, fields),
	}
	for i := 0; i < n; i++ {
		bundle.Computed[i] = make([]float64, fields)
		bundle.Ideal[i] = make([]float64, fields)
	}
	clusters := make([][]trainedUnit, fields)
	errStats := make([]*ClusterErrStats, fields)
	border := l.settings.DataRange.Mid()

	for f, field := range l.settings.Fields {
		values := make([]float64, n)
		for pos, sample := range order {
			values[pos] = ideals[sample][f]
		}
		k := foldCounts[f]
		var folds [][]int
		if field.TaskType == TaskClassification {
			var err error
			folds, err = splitClassification(values, border, k)
			if err != nil {
				return ValidationBundle{}, fmt.Errorf("field %s: %w", field.Name, err)
			}
		} else {
			folds = splitForecast(n, k)
		}

		stats := newClusterErrStats(field, k, border)
		units := make([]trainedUnit, k)
		bundle.Folds[f] = make([][]int, k)
		for fold := 0; fold < k; fold++ {
			set := TrainingSet{
				Field:      field.Name,
				TaskType:   field.TaskType,
				FoldIndex:  fold,
				NumOfFolds: k,
				Rand:       rng,
			}
			for other := 0; other < k; other++ {
				if other == fold {
					continue
				}
				for _, pos := range folds[other] {
					set.TrainingPredictors = append(set.TrainingPredictors, predictors[order[pos]])
					set.TrainingIdeals = append(set.TrainingIdeals, values[pos])
				}
			}
			for _, pos := range folds[fold] {
				set.ValidationPredictors = append(set.ValidationPredictors, predictors[order[pos]])
				set.ValidationIdeals = append(set.ValidationIdeals, values[pos])
			}

			unit, err := trainer.Train(set)
			if err != nil {
				return ValidationBundle{}, fmt.Errorf("train field %s fold %d/%d: %w", field.Name, fold+1, k, err)
			}
			if unit == nil || unit.TrainingErrStat() == nil {
				return ValidationBundle{}, fmt.Errorf("train field %s fold %d/%d: trainer returned no unit statistics", field.Name, fold+1, k)
			}
			weight := float64(unit.TrainingErrStat().Count())
			if testStat := unit.TestingErrStat(); testStat != nil {
				weight += float64(testStat.Count())
			}
			units[fold] = trainedUnit{unit: unit, weight: weight}

			indices := make([]int, 0, len(folds[fold]))
			for _, pos := range folds[fold] {
				sample := order[pos]
				computed := unit.Compute(predictors[sample])
				stats.update(computed, values[pos])
				bundle.Computed[sample][f] = computed
				bundle.Ideal[sample][f] = values[pos]
				indices = append(indices, sample)
			}
			bundle.Folds[f][fold] = indices
			if progress != nil {
				progress(field.Name, fold+1, k)
			}
		}
		clusters[f] = units
		errStats[f] = stats
	}

	l.predictors = width
	l.clusters = clusters
	l.errStats = errStats
	return bundle, nil
}

// Compute returns one ensemble output per field.
func (l *Layer) Compute(predictors []float64) ([]float64, error) {
	if !l.Built() {
		return nil, ErrNotBuilt
	}
	if len(predictors) != l.predictors {
		return nil, fmt.Errorf("predictor length mismatch: got=%d want=%d", len(predictors), l.predictors)
	}
	out := make([]float64, len(l.clusters))
	for f, units := range l.clusters {
		var avg mathx.WeightedAvg
		for _, u := range units {
			avg.Add(u.unit.Compute(predictors), u.weight)
		}
		out[f] = avg.Avg()
	}
	return out, nil
}

// ClusterErrStatistics returns copies of the per-field error statistics.
func (l *Layer) ClusterErrStatistics() []ClusterErrStats {
	out := make([]ClusterErrStats, 0, len(l.errStats))
	for _, s := range l.errStats {
		out = append(out, s.clone())
	}
	return out
}
