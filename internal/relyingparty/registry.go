package relyingparty

import (
	"fmt"
	"sync"
)

// Registry maps workflow ids to relying parties. Lookups see a consistent
// snapshot; Replace swaps the whole set atomically.
type Registry struct {
	mu         sync.RWMutex
	byWorkflow map[string]*RelyingParty
	keys       []SigningKey
}

// NewRegistry builds a registry from rps and service-wide signing keys.
func NewRegistry(rps []*RelyingParty, serviceKeys []SigningKey) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(rps, serviceKeys); err != nil {
		return nil, err
	}
	return r, nil
}

// FromFile builds a registry from a parsed configuration file.
func FromFile(f *File) (*Registry, error) {
	return NewRegistry(f.RelyingParties, f.SigningKeys)
}

// Replace installs a new snapshot. Workflow ids must be unique.
func (r *Registry) Replace(rps []*RelyingParty, serviceKeys []SigningKey) error {
	next := make(map[string]*RelyingParty, len(rps))
	for _, rp := range rps {
		if rp == nil || rp.Workflow == nil {
			return fmt.Errorf("relying party without workflow")
		}
		id := rp.Workflow.WorkflowID()
		if _, dup := next[id]; dup {
			return fmt.Errorf("duplicate workflow id %q", id)
		}
		next[id] = rp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byWorkflow = next
	r.keys = append([]SigningKey(nil), serviceKeys...)
	return nil
}

// Lookup returns the relying party owning workflowID.
func (r *Registry) Lookup(workflowID string) (*RelyingParty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rp, ok := r.byWorkflow[workflowID]
	return rp, ok
}

// ServiceKeys returns the service-wide signing keys.
func (r *Registry) ServiceKeys() []SigningKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys
}

// Len returns the number of configured relying parties.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byWorkflow)
}
