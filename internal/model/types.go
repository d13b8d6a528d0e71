package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one completed training run.
type RunRecord struct {
	VersionedRecord
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	TaskType   string             `json:"task_type"`
	Seed       int64              `json:"seed"`
	Samples    int                `json:"samples"`
	Predictors int                `json:"predictors"`
	Trainer    string             `json:"trainer"`
	CreatedAt  time.Time          `json:"created_at"`
	Reservoirs []ReservoirSummary `json:"reservoirs"`
}

type ReservoirSummary struct {
	Name        string  `json:"name"`
	Size        int     `json:"size"`
	Topology    string  `json:"topology"`
	Connections int     `json:"connections"`
	AvgState    float64 `json:"avg_state"`
	StateSpan   float64 `json:"state_span"`
}

// ClusterSummary is the persisted validation error of one output field.
type ClusterSummary struct {
	VersionedRecord
	Field         string   `json:"field"`
	TaskType      string   `json:"task_type"`
	NumOfUnits    int      `json:"num_of_units"`
	Samples       int      `json:"samples"`
	MeanErr       float64  `json:"mean_err"`
	StdDevErr     float64  `json:"stddev_err"`
	MaxErr        float64  `json:"max_err"`
	BinaryErrRate *float64 `json:"binary_err_rate,omitempty"`
}
