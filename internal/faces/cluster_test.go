package faces

import (
	"context"
	"errors"
	"math"
	"testing"
)

// obs builds an observation with a 3-dim embedding; small dimensionality
// keeps distance expectations easy to read.
func obs(source string, e ...float32) Observation {
	return Observation{Embedding: e, SourceImage: source}
}

func TestClusterObservations_Empty(t *testing.T) {
	clusters, err := ClusterObservations(context.Background(), nil, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 0 {
		t.Errorf("expected no clusters, got %d", len(clusters))
	}
}

func TestClusterObservations_Singleton(t *testing.T) {
	clusters, err := ClusterObservations(context.Background(), []Observation{obs("a.jpg", 1, 0, 0)}, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Size() != 1 {
		t.Errorf("expected singleton cluster, got size %d", clusters[0].Size())
	}
	if clusters[0].Representative().SourceImage != "a.jpg" {
		t.Errorf("expected representative a.jpg, got %s", clusters[0].Representative().SourceImage)
	}
}

func TestClusterObservations_AllWithinTolerance(t *testing.T) {
	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		obs("b.jpg", 0.1, 0, 0),
		obs("c.jpg", 0, 0.1, 0),
	}
	clusters, err := ClusterObservations(context.Background(), in, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Size() != 3 {
		t.Errorf("expected 3 members, got %d", clusters[0].Size())
	}
}

func TestClusterObservations_ThresholdBoundary(t *testing.T) {
	tolerance := 0.5

	// Distance from origin is exactly tolerance: must join (inclusive).
	at := []Observation{
		obs("rep.jpg", 0, 0, 0),
		obs("edge.jpg", float32(tolerance), 0, 0),
	}
	clusters, err := ClusterObservations(context.Background(), at, tolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 {
		t.Errorf("distance == tolerance should join the cluster, got %d clusters", len(clusters))
	}

	// Just beyond tolerance: separate clusters.
	beyond := []Observation{
		obs("rep.jpg", 0, 0, 0),
		obs("far.jpg", float32(tolerance)+0.01, 0, 0),
	}
	clusters, err = ClusterObservations(context.Background(), beyond, tolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 2 {
		t.Errorf("distance > tolerance should open a new cluster, got %d clusters", len(clusters))
	}
}

func TestClusterObservations_Completeness(t *testing.T) {
	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		obs("b.jpg", 0.2, 0, 0),
		obs("c.jpg", 5, 0, 0),
		obs("d.jpg", 5.1, 0, 0),
		obs("e.jpg", 10, 0, 0),
	}
	clusters, err := ClusterObservations(context.Background(), in, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]int)
	total := 0
	for _, c := range clusters {
		for _, m := range c.Members {
			seen[m.SourceImage]++
			total++
		}
	}
	if total != len(in) {
		t.Errorf("expected %d observations across clusters, got %d", len(in), total)
	}
	for _, o := range in {
		if seen[o.SourceImage] != 1 {
			t.Errorf("observation %s appears %d times, want exactly 1", o.SourceImage, seen[o.SourceImage])
		}
	}
}

func TestClusterObservations_Deterministic(t *testing.T) {
	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		obs("b.jpg", 0.3, 0, 0),
		obs("c.jpg", 0.55, 0, 0),
		obs("d.jpg", 2, 0, 0),
		obs("e.jpg", 2.2, 0, 0),
	}

	first, err := ClusterObservations(context.Background(), in, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := ClusterObservations(context.Background(), in, DefaultTolerance)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d clusters, want %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].Representative().SourceImage != first[i].Representative().SourceImage {
				t.Errorf("run %d: cluster %d representative changed", run, i)
			}
			if again[i].Size() != first[i].Size() {
				t.Errorf("run %d: cluster %d size changed", run, i)
			}
		}
	}
}

// c joins a's cluster because it is close to the representative a, even
// though it is far from member b. This is the documented approximation of
// comparing against the representative only.
func TestClusterObservations_NonTransitive(t *testing.T) {
	tolerance := 1.0
	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		obs("b.jpg", -0.9, 0, 0),
		obs("c.jpg", 0.9, 0, 0), // 1.8 away from b, 0.9 from a
	}
	clusters, err := ClusterObservations(context.Background(), in, tolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected a single cluster anchored at a.jpg, got %d", len(clusters))
	}
	if clusters[0].Size() != 3 {
		t.Errorf("expected all 3 faces in the cluster, got %d", clusters[0].Size())
	}

	bc, _ := EuclideanDistance(in[1].Embedding, in[2].Embedding)
	if bc <= tolerance {
		t.Fatalf("test setup broken: b and c should be farther than tolerance apart, got %f", bc)
	}
}

func TestClusterObservations_DimensionMismatch(t *testing.T) {
	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		{Embedding: []float32{0, 0}, SourceImage: "bad.jpg"},
	}
	_, err := ClusterObservations(context.Background(), in, DefaultTolerance)
	if err == nil {
		t.Fatal("expected an error for mismatched embedding dimensions")
	}
	var dimErr *ErrDimensionMismatch
	if !errors.As(err, &dimErr) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestClusterObservations_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := []Observation{
		obs("a.jpg", 0, 0, 0),
		obs("b.jpg", 5, 0, 0),
	}
	_, err := ClusterObservations(ctx, in, DefaultTolerance)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float32{0, 3, 0}, []float32{4, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-5) > 1e-9 {
		t.Errorf("expected distance 5, got %f", d)
	}

	if _, err := EuclideanDistance([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected error for mismatched dimensions")
	}
	if _, err := EuclideanDistance(nil, []float32{1}); err == nil {
		t.Error("expected error for empty embedding")
	}
}
