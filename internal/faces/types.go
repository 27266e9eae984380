// Package faces implements the face grouping core: greedy clustering of
// face embeddings, matching embeddings against named people, and a small
// HNSW index for similarity search over a scan session.
package faces

// Box is a face bounding box in source-image pixel coordinates.
// The zero value marks a face loaded from cache without location metadata.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// IsZero reports whether the box carries no location information.
func (b Box) IsZero() bool {
	return b.Top == 0 && b.Right == 0 && b.Bottom == 0 && b.Left == 0
}

// Observation is one detected face instance. It is immutable after creation
// and lives only for the duration of one clustering pass; only the embedding
// is persisted (via the encoding cache).
type Observation struct {
	Embedding   []float32 `json:"embedding"`
	SourceImage string    `json:"source_image"`
	Box         Box       `json:"box"`
}

// Cluster is a group of observations believed to be the same person.
// The representative is the first-encountered member (Members[0]); every
// member is within tolerance of the representative, but not necessarily of
// every other member.
type Cluster struct {
	Members    []Observation `json:"members"`
	PersonName string        `json:"person_name,omitempty"`
}

// Representative returns the comparison anchor of the cluster, the first
// member by discovery order.
func (c *Cluster) Representative() Observation {
	return c.Members[0]
}

// Size returns the number of member observations.
func (c *Cluster) Size() int {
	return len(c.Members)
}
