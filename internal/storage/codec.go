package storage

import (
	"encoding/json"
	"errors"

	"esnkit/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeClusterSummaries(clusters []model.ClusterSummary) ([]byte, error) {
	return json.Marshal(clusters)
}

func DecodeClusterSummaries(data []byte) ([]model.ClusterSummary, error) {
	var clusters []model.ClusterSummary
	if err := json.Unmarshal(data, &clusters); err != nil {
		return nil, err
	}
	for _, cluster := range clusters {
		if err := checkVersion(cluster.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return clusters, nil
}

func EncodeErrorSeries(series []float64) ([]byte, error) {
	return json.Marshal(series)
}

func DecodeErrorSeries(data []byte) ([]float64, error) {
	var series []float64
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, err
	}
	return series, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
