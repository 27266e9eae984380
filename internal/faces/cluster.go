package faces

import (
	"context"
	"fmt"
)

// ClusterObservations partitions observations into clusters of mutual
// similarity using greedy single-linkage against the cluster representative.
//
// Observations are visited in input order. The first unused observation
// opens a new cluster and becomes its representative; every later unused
// observation within tolerance (inclusive) of the representative joins that
// cluster. Members are compared against the representative only, not
// pairwise, so a cluster is not guaranteed to be mutually similar. The
// output is deterministic for a fixed input order; callers feeding results
// from concurrent extraction must aggregate them in a stable order first.
//
// The context is checked between clusters so a long pass can be cancelled;
// on cancellation the clusters built so far are returned along with ctx.Err().
func ClusterObservations(ctx context.Context, observations []Observation, tolerance float64) ([]Cluster, error) {
	if len(observations) == 0 {
		return nil, nil
	}

	used := make([]bool, len(observations))
	var clusters []Cluster

	for i := range observations {
		if used[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return clusters, err
		}

		rep := observations[i]
		used[i] = true
		cluster := Cluster{Members: []Observation{rep}}

		for j := i + 1; j < len(observations); j++ {
			if used[j] {
				continue
			}
			dist, err := EuclideanDistance(rep.Embedding, observations[j].Embedding)
			if err != nil {
				return nil, fmt.Errorf("comparing %s to %s: %w",
					rep.SourceImage, observations[j].SourceImage, err)
			}
			if dist <= tolerance {
				cluster.Members = append(cluster.Members, observations[j])
				used[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters, nil
}
