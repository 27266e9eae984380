package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"facesort/internal/config"
	"facesort/internal/faces"
	"facesort/internal/scan"
)

type stubRunner struct {
	session *faces.Session
	err     error
	block   bool
}

func (r *stubRunner) Run(ctx context.Context, sourceDir string, tolerance float64, events chan<- scan.Event) (*faces.Session, scan.Stats, error) {
	if r.block {
		<-ctx.Done()
		return nil, scan.Stats{}, ctx.Err()
	}
	if r.err != nil {
		return nil, scan.Stats{}, r.err
	}
	return r.session, scan.Stats{Scanned: len(r.session.Clusters)}, nil
}

func testServer(t *testing.T, runner Runner) (*Server, *config.Config) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Paths: config.PathsConfig{StateDir: t.TempDir()},
		Serve: config.ServeConfig{Host: "127.0.0.1", Port: 0},
	}
	return NewServer(cfg, runner, log), cfg
}

func seedSession(t *testing.T, cfg *config.Config, clusters []faces.Cluster) {
	t.Helper()
	session := &faces.Session{
		Source:    "/photos",
		Tolerance: 0.6,
		Clusters:  clusters,
		CreatedAt: time.Now(),
	}
	if err := session.Save(cfg.Paths.SessionFile()); err != nil {
		t.Fatalf("could not seed session: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server, _ := testServer(t, &stubRunner{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestListClustersWithoutSession(t *testing.T) {
	server, _ := testServer(t, &stubRunner{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a session, got %d", rec.Code)
	}
}

func TestListClusters(t *testing.T) {
	server, cfg := testServer(t, &stubRunner{})
	seedSession(t, cfg, []faces.Cluster{
		{
			PersonName: "Anna",
			Members: []faces.Observation{
				{Embedding: []float32{1}, SourceImage: "/photos/a.jpg"},
				{Embedding: []float32{1.1}, SourceImage: "/photos/a.jpg"},
				{Embedding: []float32{1.2}, SourceImage: "/photos/b.jpg"},
			},
		},
		{
			Members: []faces.Observation{
				{Embedding: []float32{9}, SourceImage: "/photos/c.jpg"},
			},
		},
	})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Clusters []clusterSummary `json:"clusters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(resp.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(resp.Clusters))
	}
	if resp.Clusters[0].PersonName != "Anna" || resp.Clusters[0].Size != 3 {
		t.Errorf("unexpected first cluster: %+v", resp.Clusters[0])
	}
	if len(resp.Clusters[0].Images) != 2 {
		t.Errorf("expected 2 unique images, got %v", resp.Clusters[0].Images)
	}
}

func TestNameCluster(t *testing.T) {
	server, cfg := testServer(t, &stubRunner{})
	seedSession(t, cfg, []faces.Cluster{
		{Members: []faces.Observation{{Embedding: []float32{1, 2}, SourceImage: "/photos/a.jpg"}}},
	})

	body := bytes.NewBufferString(`{"name": "Jana Nováková"}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clusters/0/name", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	session, err := faces.LoadSession(cfg.Paths.SessionFile())
	if err != nil {
		t.Fatalf("could not reload session: %v", err)
	}
	if session.Clusters[0].PersonName != "Jana Nováková" {
		t.Errorf("expected name persisted, got %q", session.Clusters[0].PersonName)
	}

	registry, err := faces.LoadRegistry(cfg.Paths.PeopleFile())
	if err != nil {
		t.Fatalf("could not load registry: %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("expected 1 registered person, got %d", registry.Len())
	}
}

func TestNameClusterRejectsEmptyName(t *testing.T) {
	server, cfg := testServer(t, &stubRunner{})
	seedSession(t, cfg, []faces.Cluster{
		{Members: []faces.Observation{{Embedding: []float32{1}, SourceImage: "/photos/a.jpg"}}},
	})

	body := bytes.NewBufferString(`{"name": "   "}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clusters/0/name", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", rec.Code)
	}
}

func TestNameClusterUnknownIndex(t *testing.T) {
	server, cfg := testServer(t, &stubRunner{})
	seedSession(t, cfg, nil)

	body := bytes.NewBufferString(`{"name": "Anna"}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clusters/5/name", body))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown cluster, got %d", rec.Code)
	}
}

func TestClusterPreviewWholeImage(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "face.png")
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 0, A: 255})
		}
	}
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	server, cfg := testServer(t, &stubRunner{})
	seedSession(t, cfg, []faces.Cluster{
		{Members: []faces.Observation{{Embedding: []float32{1}, SourceImage: imgPath}}},
	})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clusters/0/preview", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
}

func TestScanJobLifecycle(t *testing.T) {
	session := &faces.Session{
		Source: "/photos",
		Clusters: []faces.Cluster{
			{Members: []faces.Observation{{Embedding: []float32{1}, SourceImage: "/photos/a.jpg"}}},
		},
		CreatedAt: time.Now(),
	}
	server, cfg := testServer(t, &stubRunner{session: session})

	source := t.TempDir()
	body := bytes.NewBufferString(`{"source": "` + source + `"}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job ScanJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("could not decode job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a job ID")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = httptest.NewRecorder()
		server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+job.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("could not decode job: %v", err)
		}
		if job.Status == JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if job.Clusters != 1 {
		t.Errorf("expected 1 cluster reported, got %d", job.Clusters)
	}
	if _, err := faces.LoadSession(cfg.Paths.SessionFile()); err != nil {
		t.Errorf("expected session persisted after scan: %v", err)
	}
}

func TestScanJobCancel(t *testing.T) {
	server, _ := testServer(t, &stubRunner{block: true})

	source := t.TempDir()
	body := bytes.NewBufferString(`{"source": "` + source + `"}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var job ScanJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/scans/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d", rec.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = httptest.NewRecorder()
		server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+job.ID, nil))
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.Status == JobStatusCancelled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never cancelled, status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScanRejectsMissingSource(t *testing.T) {
	server, _ := testServer(t, &stubRunner{})

	body := bytes.NewBufferString(`{"source": "/does/not/exist"}`)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing source, got %d", rec.Code)
	}
}

func TestScanStatusUnknownJob(t *testing.T) {
	server, _ := testServer(t, &stubRunner{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
