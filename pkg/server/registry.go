package server

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/gateflow/pkg/session"
)

// runEntry pairs a session with the workflow it runs.
type runEntry struct {
	workflow string
	session  *session.Session
}

// runRegistry tracks live runs by session id. Entries are kept after
// completion so event logs stay readable.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runEntry)}
}

func (r *runRegistry) add(workflow string, s *session.Session) *runEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &runEntry{workflow: workflow, session: s}
	r.runs[s.ID()] = entry
	return entry
}

func (r *runRegistry) get(id string) (*runEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("unknown run %q", id)
	}
	return entry, nil
}

func (r *runRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
