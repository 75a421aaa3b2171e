// Package project stores the source projects users edit in the browser IDE.
package project

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isdmx/codepad/apperr"
)

// StatusCreated is the status of a freshly created project.
const StatusCreated = "created"

// Project is one user-editable code project.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Language     string    `json:"language"`
	Code         string    `json:"code"`
	Status       string    `json:"status"`
	DeploymentID string    `json:"deployment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the project collaborator contract.
type Store interface {
	Get(id string) (Project, error)
	Put(p Project)
	List() []Project
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
	now      func() time.Time
}

// NewMemoryStore creates an empty project store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]Project),
		now:      time.Now,
	}
}

// Create stores a new project and returns it.
func (s *MemoryStore) Create(name, language, code string) (Project, error) {
	const op = "create_project"
	if strings.TrimSpace(name) == "" {
		return Project{}, apperr.InvalidArgument(op, "name must not be empty")
	}
	if strings.TrimSpace(language) == "" {
		return Project{}, apperr.InvalidArgument(op, "language must not be empty")
	}

	now := s.now()
	p := Project{
		ID:        "proj_" + uuid.NewString(),
		Name:      name,
		Language:  language,
		Code:      code,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Put(p)
	return p, nil
}

// Get returns the project with the given id.
func (s *MemoryStore) Get(id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return Project{}, apperr.NotFound("get_project", "project", id)
	}
	return p, nil
}

// Put inserts or replaces p.
func (s *MemoryStore) Put(p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// List returns all projects, oldest first.
func (s *MemoryStore) List() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateCode replaces the source of a project.
func (s *MemoryStore) UpdateCode(id, code string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return Project{}, apperr.NotFound("update_project_code", "project", id)
	}
	p.Code = code
	p.UpdatedAt = s.now()
	s.projects[id] = p
	return p, nil
}

// Delete removes a project.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return apperr.NotFound("delete_project", "project", id)
	}
	delete(s.projects, id)
	return nil
}
