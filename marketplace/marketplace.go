package marketplace

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/codepad/apperr"
)

// DefaultAuthor is used when a template is published without an author.
const DefaultAuthor = "CodePad User"

// Rating bounds for a single submission.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

//go:embed samples.yaml
var samplesYAML []byte

// Template is a reusable code template published in the marketplace.
type Template struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Category    string    `json:"category" yaml:"category"`
	Language    string    `json:"language" yaml:"language"`
	Code        string    `json:"code" yaml:"code"`
	Author      string    `json:"author" yaml:"author"`
	Downloads   uint32    `json:"downloads" yaml:"downloads"`
	Rating      float64   `json:"rating" yaml:"rating"`
	RatingCount uint32    `json:"rating_count" yaml:"rating_count"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// NewTemplate holds the publishable fields of a template.
type NewTemplate struct {
	Name        string
	Description string
	Category    string
	Language    string
	Code        string
	Author      string
}

// TemplateUpdate lists the fields to change; nil fields are kept.
type TemplateUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Language    *string
	Code        *string
}

// SearchFilters narrows a search. Empty fields match everything.
type SearchFilters struct {
	Category  string  `json:"category,omitempty"`
	Language  string  `json:"language,omitempty"`
	Author    string  `json:"author,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalTemplates int     `json:"total_templates"`
	AverageRating  float64 `json:"average_rating"`
	TotalDownloads uint64  `json:"total_downloads"`
}

// Store is an in-memory template catalog.
type Store struct {
	mu        sync.RWMutex
	templates map[string]Template
	now       func() time.Time
}

// NewStore creates an empty catalog.
func NewStore() *Store {
	return &Store{
		templates: make(map[string]Template),
		now:       time.Now,
	}
}

// SeedSamples loads the embedded sample catalog, replacing templates with
// the same ids. It returns the number of templates loaded.
func (s *Store) SeedSamples() (int, error) {
	var catalog struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(samplesYAML, &catalog); err != nil {
		return 0, fmt.Errorf("failed to parse sample catalog: %w", err)
	}

	now := s.now()
	for _, t := range catalog.Templates {
		t.CreatedAt = now
		t.UpdatedAt = now
		s.Put(t)
	}
	return len(catalog.Templates), nil
}

// Create publishes a new template with no downloads and no rating.
func (s *Store) Create(nt NewTemplate) (Template, error) {
	const op = "create_template"
	if strings.TrimSpace(nt.Name) == "" {
		return Template{}, apperr.InvalidArgument(op, "name must not be empty")
	}
	if strings.TrimSpace(nt.Language) == "" {
		return Template{}, apperr.InvalidArgument(op, "language must not be empty")
	}

	author := nt.Author
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}

	now := s.now()
	t := Template{
		ID:          "tpl_" + uuid.NewString(),
		Name:        nt.Name,
		Description: nt.Description,
		Category:    nt.Category,
		Language:    nt.Language,
		Code:        nt.Code,
		Author:      author,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Put(t)
	return t, nil
}

// Get returns the template with the given id.
func (s *Store) Get(id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return Template{}, apperr.NotFound("get_template", "template", id)
	}
	return t, nil
}

// Put inserts or replaces t.
func (s *Store) Put(t Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// List returns all templates ordered by id.
func (s *Store) List() []Template {
	return s.Search("", nil)
}

// Update applies the non-nil fields of u.
func (s *Store) Update(id string, u TemplateUpdate) (Template, error) {
	const op = "update_template"
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Template{}, apperr.InvalidArgument(op, "name must not be empty")
	}
	if u.Language != nil && strings.TrimSpace(*u.Language) == "" {
		return Template{}, apperr.InvalidArgument(op, "language must not be empty")
	}

	return s.mutate(op, id, func(t *Template) error {
		if u.Name != nil {
			t.Name = *u.Name
		}
		if u.Description != nil {
			t.Description = *u.Description
		}
		if u.Category != nil {
			t.Category = *u.Category
		}
		if u.Language != nil {
			t.Language = *u.Language
		}
		if u.Code != nil {
			t.Code = *u.Code
		}
		return nil
	})
}

// Rate folds a 1-5 rating into the template's running mean.
func (s *Store) Rate(id string, rating float64) (Template, error) {
	const op = "rate_template"
	if math.IsNaN(rating) || rating < MinRating || rating > MaxRating {
		return Template{}, apperr.InvalidArgument(op, fmt.Sprintf("rating must be between %.0f and %.0f, got %g", MinRating, MaxRating, rating))
	}

	return s.mutate(op, id, func(t *Template) error {
		count := float64(t.RatingCount)
		if count == 0 && t.Rating > 0 {
			count = 1
		}
		t.Rating = (t.Rating*count + rating) / (count + 1)
		t.RatingCount = uint32(count) + 1
		return nil
	})
}

// Download records one download.
func (s *Store) Download(id string) (Template, error) {
	return s.mutate("download_template", id, func(t *Template) error {
		t.Downloads++
		return nil
	})
}

func (s *Store) mutate(op, id string, fn func(t *Template) error) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return Template{}, apperr.NotFound(op, "template", id)
	}
	if err := fn(&t); err != nil {
		return Template{}, err
	}
	t.UpdatedAt = s.now()
	s.templates[id] = t
	return t, nil
}

// Search returns templates whose name, description or code contains query
// (case-insensitive) and that satisfy filters, ordered by id.
func (s *Store) Search(query string, filters *SearchFilters) []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(t.Code), q) {
			continue
		}
		if filters != nil && !filters.match(t) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *SearchFilters) match(t Template) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Language != "" && t.Language != f.Language {
		return false
	}
	if f.Author != "" && t.Author != f.Author {
		return false
	}
	return t.Rating >= f.MinRating
}

// Categories returns the distinct categories, sorted.
func (s *Store) Categories() []string {
	return s.distinct(func(t Template) string { return t.Category })
}

// Languages returns the distinct languages, sorted.
func (s *Store) Languages() []string {
	return s.distinct(func(t Template) string { return t.Language })
}

func (s *Store) distinct(field func(Template) string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range s.templates {
		if v := field(t); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Stats returns catalog totals.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var ratingSum float64
	for _, t := range s.templates {
		st.TotalTemplates++
		st.TotalDownloads += uint64(t.Downloads)
		ratingSum += t.Rating
	}
	if st.TotalTemplates > 0 {
		st.AverageRating = ratingSum / float64(st.TotalTemplates)
	}
	return st
}
