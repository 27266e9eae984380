package faces

import "fmt"

// MatchPolicy selects how a query face is matched against named people when
// more than one reference is within tolerance.
type MatchPolicy string

const (
	// MatchFirst returns the first registered person within tolerance,
	// regardless of whether a later registration is nearer. This mirrors
	// the behavior users of the original tool rely on: declaration order
	// resolves ambiguity.
	MatchFirst MatchPolicy = "first"

	// MatchNearest returns the person with the minimum distance below
	// tolerance; exact ties are broken by registration order.
	MatchNearest MatchPolicy = "nearest"
)

// ParseMatchPolicy converts a config/flag string to a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(s) {
	case MatchFirst, MatchNearest:
		return MatchPolicy(s), nil
	case "":
		return MatchFirst, nil
	}
	return "", fmt.Errorf("unknown match policy %q (want %q or %q)", s, MatchFirst, MatchNearest)
}

// Match finds the named person the query embedding belongs to, or ok=false
// when no reference is within tolerance (or no people are registered).
// Distance computation errors (dimension mismatches) are surfaced, not
// swallowed.
func (r *Registry) Match(query []float32, tolerance float64, policy MatchPolicy) (name string, ok bool, err error) {
	bestDist := tolerance + 1
	for _, p := range r.people {
		dist, derr := EuclideanDistance(p.Embedding, query)
		if derr != nil {
			return "", false, fmt.Errorf("matching against %s: %w", p.Name, derr)
		}
		if dist > tolerance {
			continue
		}
		if policy == MatchFirst {
			return p.Name, true, nil
		}
		// MatchNearest: strict improvement only, so earlier registrations
		// win exact ties.
		if dist < bestDist {
			bestDist = dist
			name = p.Name
			ok = true
		}
	}
	return name, ok, nil
}
