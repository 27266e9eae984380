package faces

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Person is a named reference embedding.
type Person struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
}

// Registry holds the known people of a session in registration order.
// Registration order matters: under MatchFirst it decides which name wins
// when a face is close to more than one reference, and under MatchNearest
// it breaks exact distance ties.
type Registry struct {
	people []Person
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named reference embedding. Re-registering an existing name
// replaces its embedding but keeps the original position (last write wins).
func (r *Registry) Register(name string, embedding []float32) {
	for i := range r.people {
		if r.people[i].Name == name {
			r.people[i].Embedding = embedding
			return
		}
	}
	r.people = append(r.people, Person{Name: name, Embedding: embedding})
}

// People returns the registered people in registration order.
func (r *Registry) People() []Person {
	return r.people
}

// Len returns the number of registered people.
func (r *Registry) Len() int {
	return len(r.people)
}

// Save writes the registry as JSON, creating parent directories as needed.
func (r *Registry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	data, err := json.MarshalIndent(r.people, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding people registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing people registry: %w", err)
	}
	return nil
}

// LoadRegistry reads a registry from disk. A missing file yields an empty
// registry, not an error.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("reading people registry: %w", err)
	}

	var people []Person
	if err := json.Unmarshal(data, &people); err != nil {
		return nil, fmt.Errorf("parsing people registry %s: %w", path, err)
	}
	return &Registry{people: people}, nil
}
