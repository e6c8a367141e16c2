package storage

import (
	"errors"
	"time"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// RunInfo summarises a stored run without its per-flow results.
type RunInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	PacketCount int       `json:"packet_count"`
	FlowCount   int       `json:"flow_count"`
	MaxRisk     float64   `json:"max_risk"`
}

// ResultStore persists completed analysis runs.
type ResultStore interface {
	// SaveRun stores a run and all of its scored flows atomically.
	SaveRun(run *model.Run) error

	// Runs lists stored runs, newest first. If limit is 0, all runs are
	// returned.
	Runs(limit int) ([]RunInfo, error)

	// RunResults loads a run with its scored flows in first-seen order.
	RunResults(id string) (*model.Run, error)

	// Close releases any resources held by the storage backend.
	Close() error
}
