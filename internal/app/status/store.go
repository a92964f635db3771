// Package status holds the dashboard's single deployment status record.
package status

import (
	"sync"
	"time"

	"github.com/homeport/stackpilot/internal/domain/stack"
)

// State is the lifecycle state shown on the dashboard.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateDeploying State = "deploying"
	StateSuccess   State = "success"
	StateError     State = "error"
)

// Status is the record of the last operation.
type Status struct {
	State       State           `json:"state"`
	Message     string          `json:"message"`
	OperationID string          `json:"operation_id,omitempty"`
	Step        string          `json:"step,omitempty"`
	Progress    float64         `json:"progress"`
	LastScan    *time.Time      `json:"last_scan,omitempty"`
	LastDeploy  *time.Time      `json:"last_deploy,omitempty"`
	Services    stack.StatusMap `json:"services"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (s Status) clone() Status {
	out := s
	out.Services = make(stack.StatusMap, len(s.Services))
	for k, v := range s.Services {
		out.Services[k] = v
	}
	return out
}

// subscriberBuffer is the number of updates a slow subscriber may lag behind
// before updates to it are dropped.
const subscriberBuffer = 32

// Store owns the status record. Reads and writes are safe for concurrent
// use; ordering between overlapping operations is up to the caller.
type Store struct {
	mu          sync.RWMutex
	status      Status
	subscribers []chan Status
	now         func() time.Time
}

// NewStore creates a store in the idle state with every service down.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.status = Status{
		State:     StateIdle,
		Message:   "Ready",
		Services:  stack.AllDown(),
		UpdatedAt: s.now().UTC(),
	}
	return s
}

// Get returns a copy of the current status.
func (s *Store) Get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.clone()
}

// Update applies fn to a copy of the current status and stores the result.
func (s *Store) Update(fn func(*Status)) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status.clone()
	fn(&st)
	if st.Services == nil {
		st.Services = stack.AllDown()
	}
	st.UpdatedAt = s.now().UTC()

	s.status = st.clone()
	s.emit(s.status)
	return st
}

// Subscribe returns a channel receiving every subsequent status.
func (s *Store) Subscribe() chan Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Status, subscriberBuffer)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch chan Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// emit must be called with the lock held.
func (s *Store) emit(st Status) {
	for _, ch := range s.subscribers {
		select {
		case ch <- st.clone():
		default: // drop if buffer full
		}
	}
}
