package faces

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Session is the result of one scan pass: the clusters found and the
// parameters that produced them. It is persisted between commands so that
// naming and similarity search can happen after the scan.
type Session struct {
	Source    string
	Tolerance float64
	Clusters  []Cluster
	CreatedAt time.Time
}

// Observations returns all member observations across clusters in discovery
// order (cluster order, then member order).
func (s *Session) Observations() []Observation {
	var out []Observation
	for _, c := range s.Clusters {
		out = append(out, c.Members...)
	}
	return out
}

// Save persists the session with gob, creating parent directories as needed.
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return nil
}

// LoadSession reads a previously saved session.
func LoadSession(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close()

	var s Session
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", path, err)
	}
	return &s, nil
}
