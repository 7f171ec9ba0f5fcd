package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/petroseis/pgi/internal/mixture"
	"github.com/petroseis/pgi/pkg/objectstore"
)

// ErrInvalid is returned for configuration values outside their domain.
var ErrInvalid = errors.New("invalid configuration value")

type Config struct {
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Fit         FitConfig         `json:"fit"`
	Sensitivity SensitivityConfig `json:"sensitivity"`
}

type ObjectStoreConfig struct {
	Type      string `json:"type"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
	RootPath  string `json:"root_path"`
}

// FitConfig holds the mixture fit parameters.
type FitConfig struct {
	// Components is the cluster count K.
	Components int `json:"components"`
	// CovarianceType is full, tied, diag or spherical.
	CovarianceType string `json:"covariance_type"`
	// Tolerance is the lower-bound convergence threshold.
	// 0 means use the default (1e-3).
	Tolerance float64 `json:"tolerance,omitempty"`
	// RegCovar is the covariance regularization floor.
	// 0 means use the default (1e-6).
	RegCovar float64 `json:"reg_covar,omitempty"`
	// MaxIter caps EM iterations per trial. 0 means use the default (100).
	MaxIter int `json:"max_iter,omitempty"`
	// NInit is the number of random restarts. 0 means use the default (10).
	NInit int `json:"n_init,omitempty"`
	// Seed seeds initialization; fits with the same seed are reproducible.
	Seed uint64 `json:"seed,omitempty"`
	// Init is kmeans or random. Empty means kmeans.
	Init string `json:"init,omitempty"`
}

// SensitivityConfig holds the Jacobian build parameters.
type SensitivityConfig struct {
	// Path is the store prefix the persisted array lives under.
	Path string `json:"path"`
	// ChunkRows is the persisted chunk height. 0 means use the default.
	ChunkRows int `json:"chunk_rows,omitempty"`
	// Workers bounds build parallelism. 0 means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
	// ModelSize is the parameter count of the demo simulation.
	ModelSize int `json:"model_size,omitempty"`
}

func Default() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Type:     "fs",
			RootPath: "./pgi-data",
		},
		Fit: FitConfig{
			Components:     2,
			CovarianceType: "full",
		},
		Sensitivity: SensitivityConfig{
			Path:      "sensitivity/J",
			ModelSize: 16,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PGI_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("PGI_OBJECT_STORE_TYPE"); env != "" {
		cfg.ObjectStore.Type = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_ENDPOINT"); env != "" {
		cfg.ObjectStore.Endpoint = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_BUCKET"); env != "" {
		cfg.ObjectStore.Bucket = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_ROOT"); env != "" {
		cfg.ObjectStore.RootPath = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_ACCESS_KEY"); env != "" {
		cfg.ObjectStore.AccessKey = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_SECRET_KEY"); env != "" {
		cfg.ObjectStore.SecretKey = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_REGION"); env != "" {
		cfg.ObjectStore.Region = env
	}
	if env := os.Getenv("PGI_OBJECT_STORE_USE_SSL"); env != "" {
		cfg.ObjectStore.UseSSL = env == "true" || env == "1"
	}

	if err := overrideInt(&cfg.Fit.Components, "PGI_FIT_COMPONENTS"); err != nil {
		return nil, err
	}
	if env := os.Getenv("PGI_FIT_COVARIANCE_TYPE"); env != "" {
		cfg.Fit.CovarianceType = env
	}
	if err := overrideFloat(&cfg.Fit.Tolerance, "PGI_FIT_TOLERANCE"); err != nil {
		return nil, err
	}
	if err := overrideFloat(&cfg.Fit.RegCovar, "PGI_FIT_REG_COVAR"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Fit.MaxIter, "PGI_FIT_MAX_ITER"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Fit.NInit, "PGI_FIT_N_INIT"); err != nil {
		return nil, err
	}
	if err := overrideSeed(&cfg.Fit.Seed, "PGI_FIT_SEED"); err != nil {
		return nil, err
	}
	if env := os.Getenv("PGI_FIT_INIT"); env != "" {
		cfg.Fit.Init = env
	}

	if env := os.Getenv("PGI_SENSITIVITY_PATH"); env != "" {
		cfg.Sensitivity.Path = env
	}
	if err := overrideInt(&cfg.Sensitivity.ChunkRows, "PGI_SENSITIVITY_CHUNK_ROWS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Sensitivity.Workers, "PGI_SENSITIVITY_WORKERS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Sensitivity.ModelSize, "PGI_SENSITIVITY_MODEL_SIZE"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated and numeric fields against their domains.
// Zero values that mean "use the default" downstream are accepted.
func (c *Config) Validate() error {
	if !objectstore.Type(c.ObjectStore.Type).IsValid() {
		return fmt.Errorf("%w: object store type %q", ErrInvalid, c.ObjectStore.Type)
	}
	if c.Fit.Components < 1 {
		return fmt.Errorf("%w: %d components", ErrInvalid, c.Fit.Components)
	}
	if !mixture.CovarianceType(c.Fit.CovarianceType).IsValid() {
		return fmt.Errorf("%w: covariance type %q", ErrInvalid, c.Fit.CovarianceType)
	}
	if c.Fit.Init != "" && !mixture.InitMethod(c.Fit.Init).IsValid() {
		return fmt.Errorf("%w: init method %q", ErrInvalid, c.Fit.Init)
	}
	if c.Fit.Tolerance < 0 || c.Fit.RegCovar < 0 {
		return fmt.Errorf("%w: negative fit floor", ErrInvalid)
	}
	if c.Fit.MaxIter < 0 || c.Fit.NInit < 0 {
		return fmt.Errorf("%w: negative fit iteration count", ErrInvalid)
	}
	if c.Sensitivity.Path == "" {
		return fmt.Errorf("%w: empty sensitivity path", ErrInvalid)
	}
	if c.Sensitivity.ChunkRows < 0 || c.Sensitivity.Workers < 0 || c.Sensitivity.ModelSize < 0 {
		return fmt.Errorf("%w: negative sensitivity parameter", ErrInvalid)
	}
	return nil
}

func overrideInt(dst *int, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(env, "%d", &n); err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, env)
	}
	*dst = n
	return nil
}

func overrideFloat(dst *float64, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	var f float64
	if _, err := fmt.Sscanf(env, "%g", &f); err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, env)
	}
	*dst = f
	return nil
}

func overrideSeed(dst *uint64, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	var n uint64
	if _, err := fmt.Sscanf(env, "%d", &n); err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, env)
	}
	*dst = n
	return nil
}
