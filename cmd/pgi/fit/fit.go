package fit

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/config"
	"github.com/petroseis/pgi/internal/logging"
	"github.com/petroseis/pgi/internal/mixture"
)

// summary is the JSON document printed after a successful fit.
type summary struct {
	Converged      bool        `json:"converged"`
	Iterations     int         `json:"iterations"`
	LowerBound     float64     `json:"lower_bound"`
	Components     int         `json:"components"`
	Features       int         `json:"features"`
	CovarianceType string      `json:"covariance_type"`
	Weights        []float64   `json:"weights"`
	Means          [][]float64 `json:"means"`
}

func Run(args []string) {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dataPath := fs.String("data", "", "CSV of samples, one row per cell, feature columns first")
	hasVolumes := fs.Bool("volumes", false, "Treat the last CSV column as cell volumes")
	fs.Parse(args)

	if *dataPath == "" {
		log.Fatal("fit requires -data")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	X, volumes, err := readSamples(*dataPath, *hasVolumes)
	if err != nil {
		log.Fatalf("Failed to read samples: %v", err)
	}
	if volumes == nil {
		n, _ := X.Dims()
		volumes = make([]float64, n)
		for i := range volumes {
			volumes[i] = 1
		}
	}

	covType := mixture.CovarianceType(cfg.Fit.CovarianceType)
	if cfg.Fit.CovarianceType == "" {
		covType = mixture.CovFull
	}
	m, err := mixture.Fit(X, volumes, mixture.FitConfig{
		Components: cfg.Fit.Components,
		CovType:    covType,
		Tol:        cfg.Fit.Tolerance,
		RegCovar:   cfg.Fit.RegCovar,
		MaxIter:    cfg.Fit.MaxIter,
		NInit:      cfg.Fit.NInit,
		Init:       mixture.InitMethod(cfg.Fit.Init),
		Seed:       cfg.Fit.Seed,
		Logger:     logging.New(),
	})
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	means := make([][]float64, m.Components)
	for k := range means {
		means[k] = append([]float64(nil), m.Means.RawRowView(k)...)
	}
	out := summary{
		Converged:      m.Converged,
		Iterations:     m.Iterations,
		LowerBound:     m.LowerBound,
		Components:     m.Components,
		Features:       m.Features,
		CovarianceType: string(m.CovType),
		Weights:        m.Weights,
		Means:          means,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to encode summary: %v", err)
	}
}

// readSamples parses the CSV into a sample matrix and, when the last
// column carries volumes, the volume vector.
func readSamples(path string, hasVolumes bool) (*mat.Dense, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no samples in %s", path)
	}

	cols := len(records[0])
	features := cols
	if hasVolumes {
		features--
	}
	if features < 1 {
		return nil, nil, fmt.Errorf("need at least one feature column, got %d columns", cols)
	}

	X := mat.NewDense(len(records), features, nil)
	var volumes []float64
	if hasVolumes {
		volumes = make([]float64, len(records))
	}
	for i, rec := range records {
		if len(rec) != cols {
			return nil, nil, fmt.Errorf("row %d has %d columns, want %d", i+1, len(rec), cols)
		}
		for j := 0; j < features; j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			X.Set(i, j, v)
		}
		if hasVolumes {
			v, err := strconv.ParseFloat(rec[features], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d volume: %w", i+1, err)
			}
			volumes[i] = v
		}
	}
	return X, volumes, nil
}
