package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"esnkit/internal/mathx"
)

func TestReadCSVAndTimeSeries(t *testing.T) {
	in := strings.NewReader("t, price ,volume\n0,1.5,10\n\n1,2.5,11\n2,3.5,12\n")
	table, err := ReadCSV(in)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(table.Rows) != 3 || table.Columns[1] != "price" {
		t.Fatalf("unexpected table: %+v", table)
	}
	bundle, err := TimeSeriesFromTable(table, []string{"price", "volume"}, []string{"Price"})
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	if bundle.Len() != 2 {
		t.Fatalf("unexpected bundle length: %d", bundle.Len())
	}
	if bundle.Inputs[0][0] != 1.5 || bundle.Outputs[0][0] != 2.5 || bundle.Outputs[1][0] != 3.5 {
		t.Fatalf("expected next-step pairing: %+v", bundle)
	}
	if len(bundle.Next) != 2 || bundle.Next[0] != 3.5 || bundle.Next[1] != 12 {
		t.Fatalf("expected last row as next input, got %v", bundle.Next)
	}
	if err := bundle.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := TimeSeriesFromTable(table, []string{"missing"}, []string{"price"}); err == nil {
		t.Fatal("expected unknown column error")
	}
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	tests := map[string]string{
		"no_header":   "",
		"short_row":   "a,b\n1\n",
		"non_numeric": "a,b\n1,x\n",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(payload)); err == nil {
				t.Fatal("expected csv error")
			}
		})
	}
}

func TestLoadCSVFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := os.WriteFile(path, []byte("x\n1\n2\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("unexpected rows: %+v", table.Rows)
	}
	if _, err := LoadCSV(""); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestPatternsFromTable(t *testing.T) {
	table := Table{
		Columns: []string{"a1", "b1", "a2", "b2", "class"},
		Rows: [][]float64{
			{1, 2, 3, 4, 1},
			{5, 6, 7, 8, 0},
		},
	}
	bundle, err := PatternsFromTable(table, []string{"class"}, 2)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if bundle.Len() != 2 || len(bundle.Patterns[0]) != 2 || bundle.Patterns[1][1][0] != 7 {
		t.Fatalf("unexpected patterns: %+v", bundle.Patterns)
	}
	if bundle.Outputs[0][0] != 1 || bundle.Outputs[1][0] != 0 {
		t.Fatalf("unexpected outputs: %+v", bundle.Outputs)
	}
	if _, err := PatternsFromTable(table, []string{"class"}, 3); err == nil {
		t.Fatal("expected step width error")
	}
}

func TestNormalizeTimeSeriesRoundTrip(t *testing.T) {
	bundle := TimeSeriesBundle{
		Inputs:  [][]float64{{10}, {20}, {30}},
		Outputs: [][]float64{{20}, {30}, {40}},
	}
	norms, err := FitTimeSeries(bundle, mathx.DefaultNormRange, 0, false)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	normalized, err := norms.NormalizeTimeSeries(bundle)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized.Inputs[0][0] != -1 || normalized.Inputs[2][0] != 1 {
		t.Fatalf("unexpected normalized inputs: %+v", normalized.Inputs)
	}
	natural, err := norms.NaturalizeOutput(normalized.Outputs[1])
	if err != nil {
		t.Fatalf("naturalize: %v", err)
	}
	if math.Abs(natural[0]-30) > 1e-9 {
		t.Fatalf("unexpected naturalized output: %f", natural[0])
	}
}

func TestNormalizeConstantFieldFails(t *testing.T) {
	bundle := TimeSeriesBundle{
		Inputs:  [][]float64{{1}, {1}},
		Outputs: [][]float64{{0}, {1}},
	}
	norms, err := FitTimeSeries(bundle, mathx.DefaultNormRange, 0, false)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := norms.NormalizeTimeSeries(bundle); !errors.Is(err, mathx.ErrNormalizerNotInitialized) {
		t.Fatalf("expected ErrNormalizerNotInitialized, got: %v", err)
	}
}

func TestPatternBundleValidation(t *testing.T) {
	bad := PatternBundle{
		Patterns: [][][]float64{{{1, 2}, {3}}},
		Outputs:  [][]float64{{1}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected width mismatch error")
	}
	good := PatternBundle{
		Patterns: [][][]float64{{{1, 2}, {3, 4}}, {{0, 1}}},
		Outputs:  [][]float64{{1}, {-1}},
	}
	norms, err := FitPatterns(good, mathx.DefaultNormRange, 0, false)
	if err != nil {
		t.Fatalf("fit patterns: %v", err)
	}
	normalized, err := norms.NormalizePatterns(good)
	if err != nil {
		t.Fatalf("normalize patterns: %v", err)
	}
	if normalized.Outputs[0][0] != 1 || normalized.Outputs[1][0] != -1 {
		t.Fatalf("unexpected normalized outputs: %+v", normalized.Outputs)
	}
}

func TestNormalizeTimeSeriesCarriesNextInput(t *testing.T) {
	bundle := TimeSeriesBundle{
		Inputs:  [][]float64{{10}, {20}},
		Outputs: [][]float64{{20}, {30}},
		Next:    []float64{30},
	}
	norms, err := FitTimeSeries(bundle, mathx.DefaultNormRange, 0, false)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	normalized, err := norms.NormalizeTimeSeries(bundle)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized.Inputs[0][0] != -1 || normalized.Next[0] != 1 {
		t.Fatalf("expected next input inside the fitted range: inputs=%v next=%v", normalized.Inputs, normalized.Next)
	}

	head, tail := bundle.Split(1)
	if head.Next != nil || len(tail.Next) != 1 {
		t.Fatalf("expected next input to stay with the tail: head=%v tail=%v", head.Next, tail.Next)
	}

	bundle.Next = []float64{1, 2}
	if err := bundle.Validate(); err == nil {
		t.Fatal("expected next input width error")
	}
}
