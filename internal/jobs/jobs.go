// Package jobs tracks background analysis runs. The store is an explicit
// interface injected into the service instead of an ambient map, with the
// state transitions Pending -> Running -> Completed|Failed.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

type Job struct {
	ID           string     `json:"job_id"`
	State        State      `json:"status"`
	AnalysisKind string     `json:"analysis_type"`
	InputFile    string     `json:"input_file"`
	OutputFile   string     `json:"output_file,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type Store interface {
	Create(kind, inputFile, outputFile string) Job
	Get(id string) (Job, bool)
	List() []Job
	MarkRunning(id string)
	MarkCompleted(id, outputFile string)
	MarkFailed(id string, err error)
}

// MemoryStore keeps jobs for the lifetime of the process, in creation order.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Job
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*Job{}}
}

func (s *MemoryStore) Create(kind, inputFile, outputFile string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:           "job_" + uuid.NewString(),
		State:        StatePending,
		AnalysisKind: kind,
		InputFile:    inputFile,
		OutputFile:   outputFile,
		CreatedAt:    time.Now().UTC(),
	}
	s.byID[j.ID] = j
	s.order = append(s.order, j.ID)
	return *j
}

func (s *MemoryStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.byID[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *MemoryStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

func (s *MemoryStore) MarkRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.byID[id]; ok {
		j.State = StateRunning
	}
}

func (s *MemoryStore) MarkCompleted(id, outputFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.byID[id]; ok {
		now := time.Now().UTC()
		j.State = StateCompleted
		j.CompletedAt = &now
		if outputFile != "" {
			j.OutputFile = outputFile
		}
	}
}

func (s *MemoryStore) MarkFailed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.byID[id]; ok {
		now := time.Now().UTC()
		j.State = StateFailed
		j.CompletedAt = &now
		if err != nil {
			j.Error = err.Error()
		}
	}
}
