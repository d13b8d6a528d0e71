package readout

import "esnkit/internal/mathx"

// ClusterErrStats holds the pessimistic validation error of one cluster.
type ClusterErrStats struct {
	Field        string
	TaskType     TaskType
	NumOfUnits   int
	PrecisionErr *mathx.BasicStat
	// BinaryErr is only tracked for classification fields.
	BinaryErr *mathx.BinErrStat
}

type ClusterErrSnapshot struct {
	Field         string             `json:"field"`
	TaskType      TaskType           `json:"task_type"`
	NumOfUnits    int                `json:"num_of_units"`
	PrecisionErr  mathx.StatSnapshot `json:"precision_err"`
	BinaryErrRate *float64           `json:"binary_err_rate,omitempty"`
}

func newClusterErrStats(field FieldSettings, units int, border float64) *ClusterErrStats {
	s := &ClusterErrStats{
		Field:        field.Name,
		TaskType:     field.TaskType,
		NumOfUnits:   units,
		PrecisionErr: mathx.NewBasicStat(),
	}
	if field.TaskType == TaskClassification {
		s.BinaryErr = mathx.NewBinErrStat(border)
	}
	return s
}

func (s *ClusterErrStats) update(computed, ideal float64) {
	diff := computed - ideal
	if diff < 0 {
		diff = -diff
	}
	s.PrecisionErr.Add(diff)
	if s.BinaryErr != nil {
		s.BinaryErr.Update(computed, ideal)
	}
}

func (s *ClusterErrStats) clone() ClusterErrStats {
	out := ClusterErrStats{
		Field:        s.Field,
		TaskType:     s.TaskType,
		NumOfUnits:   s.NumOfUnits,
		PrecisionErr: s.PrecisionErr.Clone(),
	}
	if s.BinaryErr != nil {
		binary := *s.BinaryErr
		out.BinaryErr = &binary
	}
	return out
}

func (s ClusterErrStats) Snapshot() ClusterErrSnapshot {
	out := ClusterErrSnapshot{
		Field:        s.Field,
		TaskType:     s.TaskType,
		NumOfUnits:   s.NumOfUnits,
		PrecisionErr: s.PrecisionErr.Snapshot(),
	}
	if s.BinaryErr != nil {
		rate := s.BinaryErr.ErrRate()
		out.BinaryErrRate = &rate
	}
	return out
}
