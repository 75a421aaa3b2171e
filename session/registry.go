package session

import (
	"sort"
	"sync"
	"time"
)

// State is the lifecycle state of a session.
type State int

const (
	StateRequested State = iota
	StateStarting
	StateLive
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateStarting:
		return "starting"
	case StateLive:
		return "live"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle identifies a live container owned by a user. It is never mutated
// after creation.
type Handle struct {
	ContainerID string    `json:"container_id"`
	EditorURL   string    `json:"editor_url"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
}

type entry struct {
	handle Handle
	state  State
}

// Registry maps session owners to their current container. It is the single
// owner of session state and is only mutated by Manager.
type Registry struct {
	mu          sync.RWMutex
	byOwner     map[string]*entry
	ownerByCont map[string]string

	// resized observes the session count after every change, under mu.
	resized func(n int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byOwner:     make(map[string]*entry),
		ownerByCont: make(map[string]string),
	}
}

func (r *Registry) onResize(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resized = fn
}

func (r *Registry) notifyLocked() {
	if r.resized != nil {
		r.resized(len(r.byOwner))
	}
}

// Put stores h as the owner's live session and returns the handle it
// replaced, if any. A container id can only belong to one owner, so another
// owner still bound to h.ContainerID loses its entry.
func (r *Registry) Put(h Handle) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced *Handle
	if prev, ok := r.byOwner[h.Owner]; ok {
		prevHandle := prev.handle
		replaced = &prevHandle
		delete(r.ownerByCont, prevHandle.ContainerID)
	}
	if other, ok := r.ownerByCont[h.ContainerID]; ok && other != h.Owner {
		delete(r.byOwner, other)
	}

	r.byOwner[h.Owner] = &entry{handle: h, state: StateLive}
	r.ownerByCont[h.ContainerID] = h.Owner
	r.notifyLocked()
	return replaced
}

// Get returns the owner's current handle.
func (r *Registry) Get(owner string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byOwner[owner]
	if !ok {
		return Handle{}, false
	}
	return e.handle, true
}

// ByContainer returns the handle currently bound to containerID.
func (r *Registry) ByContainer(containerID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(containerID)
	if e == nil {
		return Handle{}, false
	}
	return e.handle, true
}

// State returns the registry state of containerID.
func (r *Registry) State(containerID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(containerID)
	if e == nil {
		return 0, false
	}
	return e.state, true
}

// MarkStopping flags containerID as being torn down. It reports whether an
// entry was found.
func (r *Registry) MarkStopping(containerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookupLocked(containerID)
	if e == nil {
		return false
	}
	e.state = StateStopping
	return true
}

// RemoveContainer deletes the entry bound to containerID. An owner whose
// session was replaced by a newer container is left untouched.
func (r *Registry) RemoveContainer(containerID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookupLocked(containerID)
	if e == nil {
		return Handle{}, false
	}
	delete(r.byOwner, e.handle.Owner)
	delete(r.ownerByCont, containerID)
	r.notifyLocked()
	return e.handle, true
}

// List returns all handles ordered by creation time.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.byOwner))
	for _, e := range r.byOwner {
		out = append(out, e.handle)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Owner < out[j].Owner
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner)
}

func (r *Registry) lookupLocked(containerID string) *entry {
	owner, ok := r.ownerByCont[containerID]
	if !ok {
		return nil
	}
	e, ok := r.byOwner[owner]
	if !ok || e.handle.ContainerID != containerID {
		return nil
	}
	return e
}
