package encodings

import "facesort/internal/faces"

// Split breaks observations into the parallel slices the cache stores.
func Split(observations []faces.Observation) (embeddings [][]float32, boxes []faces.Box) {
	if len(observations) == 0 {
		return [][]float32{}, []faces.Box{}
	}
	embeddings = make([][]float32, len(observations))
	boxes = make([]faces.Box, len(observations))
	for i, obs := range observations {
		embeddings[i] = obs.Embedding
		boxes[i] = obs.Box
	}
	return embeddings, boxes
}

// Join rebuilds observations for a file from cached slices. A short or
// missing boxes slice leaves the corresponding boxes zero, which older
// cache files may contain.
func Join(path string, embeddings [][]float32, boxes []faces.Box) []faces.Observation {
	observations := make([]faces.Observation, len(embeddings))
	for i, embedding := range embeddings {
		observations[i] = faces.Observation{
			Embedding:   embedding,
			SourceImage: path,
		}
		if i < len(boxes) {
			observations[i].Box = boxes[i]
		}
	}
	return observations
}
