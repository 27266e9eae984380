package faces

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

const indexMaxNeighbors = 16

// Neighbor is one result of a similarity search over indexed observations.
type Neighbor struct {
	Observation Observation
	Distance    float64
}

// Index is an HNSW index over the observations of a scan session, used by
// similarity search. Clustering does not use it; the greedy clusterer's
// contract is exact distances in input order.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int]
	obs   []Observation
}

// NewIndex builds an index from a session's observations.
func NewIndex(observations []Observation) *Index {
	idx := &Index{obs: observations}
	if len(observations) == 0 {
		return idx
	}

	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i, o := range observations {
		if len(o.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, o.Embedding))
	}
	idx.graph = g
	return idx
}

// Search returns up to k nearest observations to the query embedding,
// nearest first. Distances are recomputed exactly so results can be
// compared against the clustering tolerance.
func (idx *Index) Search(query []float32, k int) ([]Neighbor, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, errors.New("index is empty")
	}

	nodes := idx.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		dist, err := EuclideanDistance(query, n.Value)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, Neighbor{
			Observation: idx.obs[n.Key],
			Distance:    dist,
		})
	}
	return neighbors, nil
}

// Count returns the number of indexed observations.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.graph == nil {
		return 0
	}
	return idx.graph.Len()
}
