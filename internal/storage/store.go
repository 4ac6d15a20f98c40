package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/cartpole/internal/episode"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists runs of the episode runner.
type Store interface {
	Init(ctx context.Context) error
	// Save assigns the run id, fills the result-derived fields of meta
	// and returns the id.
	Save(ctx context.Context, meta RunMetadata, result *episode.Result) (string, error)
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, runID string) (*RunMetadata, error)
	LoadEpisodes(ctx context.Context, runID string) ([]episode.Summary, error)
	// LoadSteps returns nothing for runs saved without recorded steps.
	LoadSteps(ctx context.Context, runID string) ([]episode.StepRecord, error)
	Close() error
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Controller string             `json:"controller"`
	Remote     string             `json:"remote,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Episodes   int                `json:"episodes"`
	MaxSteps   int                `json:"max_steps"`
	InitState  []float64          `json:"init_state,omitempty"`
	TotalSteps int                `json:"total_steps"`
	SolvedAt   int                `json:"solved_at"`
	Metrics    map[string]float64 `json:"metrics"`
}

func newRunID(controller string) string {
	return fmt.Sprintf("%s_%s", controller, uuid.NewString()[:8])
}

func prepare(meta *RunMetadata, result *episode.Result) {
	meta.ID = newRunID(meta.Controller)
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Episodes = len(result.Episodes)
	meta.TotalSteps = result.TotalSteps
	meta.SolvedAt = result.SolvedAt
	meta.Metrics = result.Metrics
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
}
