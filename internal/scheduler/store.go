package scheduler

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// RunState is the persisted progress of one schedule.
type RunState struct {
	Name       string    `json:"name"`
	NextRun    time.Time `json:"next_run"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastJobID  string    `json:"last_job_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

type stateFile struct {
	Schedules map[string]*RunState `json:"schedules"`
}

// Store keeps schedule run state in a JSON file. An empty path keeps state
// in memory only.
type Store struct {
	path string
	data stateFile
	mu   sync.RWMutex
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: stateFile{Schedules: make(map[string]*RunState)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, &s.data); err != nil {
		return err
	}
	if s.data.Schedules == nil {
		s.data.Schedules = make(map[string]*RunState)
	}
	return nil
}

// save writes the state file. Caller holds the lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(b))
}

func (s *Store) Get(name string) (RunState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.data.Schedules[name]
	if !ok {
		return RunState{}, false
	}
	return *state, true
}

func (s *Store) Put(state RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := state
	s.data.Schedules[state.Name] = &copied
	return s.save()
}

// All returns every state sorted by name.
func (s *Store) All() []RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]RunState, 0, len(s.data.Schedules))
	for _, state := range s.data.Schedules {
		states = append(states, *state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}
