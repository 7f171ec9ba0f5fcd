package sensitivity

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/petroseis/pgi/internal/config"
	"github.com/petroseis/pgi/internal/jacobian"
	"github.com/petroseis/pgi/internal/logging"
	"github.com/petroseis/pgi/pkg/objectstore"
)

// summary is the JSON document printed after a successful build.
type summary struct {
	BuildID string `json:"build_id"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	Chunks  int    `json:"chunks"`
}

// Run builds the Jacobian of the configured demo simulation: a
// diag(m) system with one source exciting every cell and one receiver
// per cell. It exercises the full pipeline from factorization through
// persisted chunks.
func Run(args []string) {
	fs := flag.NewFlagSet("sensitivity", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := objectstore.New(objectstore.Config{
		Type:      objectstore.Type(cfg.ObjectStore.Type),
		Root:      cfg.ObjectStore.RootPath,
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Region:    cfg.ObjectStore.Region,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	size := cfg.Sensitivity.ModelSize
	if size <= 0 {
		size = 16
	}
	sim := jacobian.NewLinearSimulation(size)
	indices := make([]int, size)
	rhs := make([]float64, size)
	model := make([]float64, size)
	for i := range indices {
		indices[i] = i
		rhs[i] = 1
		model[i] = 1
	}
	sim.SetSurvey(&jacobian.Survey{Sources: []jacobian.Source{
		&jacobian.BasicSource{RHS: rhs, Rx: []jacobian.Receiver{
			&jacobian.PointReceiver{Indices: indices},
		}},
	}})

	builder, err := jacobian.NewBuilder(jacobian.BuilderConfig{
		Store:     store,
		Path:      cfg.Sensitivity.Path,
		Workers:   cfg.Sensitivity.Workers,
		ChunkRows: cfg.Sensitivity.ChunkRows,
		Logger:    logging.New(),
	})
	if err != nil {
		log.Fatalf("Failed to configure builder: %v", err)
	}

	arr, err := builder.Build(context.Background(), sim, model)
	if err != nil {
		log.Fatalf("Sensitivity build failed: %v", err)
	}

	rows, cols := arr.Dims()
	out := summary{
		BuildID: arr.BuildID(),
		Path:    cfg.Sensitivity.Path,
		Rows:    rows,
		Cols:    cols,
		Chunks:  arr.NumChunks(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to encode summary: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Sensitivity persisted under %q\n", cfg.Sensitivity.Path)
}
