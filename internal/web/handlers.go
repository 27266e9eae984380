package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	_ "golang.org/x/image/bmp"

	"facesort/internal/faces"
	"facesort/internal/scan"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clusterSummary is the list representation of one cluster; embeddings stay
// server-side.
type clusterSummary struct {
	Index      int      `json:"index"`
	PersonName string   `json:"person_name,omitempty"`
	Size       int      `json:"size"`
	Images     []string `json:"images"`
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	session, err := faces.LoadSession(s.cfg.Paths.SessionFile())
	if err != nil {
		respondError(w, http.StatusNotFound, "no scan session found, run a scan first")
		return
	}

	summaries := make([]clusterSummary, len(session.Clusters))
	for i, cluster := range session.Clusters {
		images := make([]string, 0, len(cluster.Members))
		seen := make(map[string]bool)
		for _, obs := range cluster.Members {
			if !seen[obs.SourceImage] {
				seen[obs.SourceImage] = true
				images = append(images, obs.SourceImage)
			}
		}
		summaries[i] = clusterSummary{
			Index:      i,
			PersonName: cluster.PersonName,
			Size:       cluster.Size(),
			Images:     images,
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"source":     session.Source,
		"tolerance":  session.Tolerance,
		"created_at": session.CreatedAt,
		"clusters":   summaries,
	})
}

// handleClusterPreview serves a JPEG crop of the cluster representative's
// face, or the whole image when no box was recorded.
func (s *Server) handleClusterPreview(w http.ResponseWriter, r *http.Request) {
	session, err := faces.LoadSession(s.cfg.Paths.SessionFile())
	if err != nil {
		respondError(w, http.StatusNotFound, "no scan session found")
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(session.Clusters) {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}

	rep := session.Clusters[index].Representative()
	img, err := cropFace(rep)
	if err != nil {
		s.log.WithError(err).Warnf("could not render preview for cluster %d", index)
		respondError(w, http.StatusInternalServerError, "could not render preview")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
		s.log.WithError(err).Warn("could not encode preview")
	}
}

// cropFace loads the observation's source image and cuts out its face box,
// clamped to the image bounds.
func cropFace(obs faces.Observation) (image.Image, error) {
	f, err := os.Open(obs.SourceImage)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", obs.SourceImage, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", obs.SourceImage, err)
	}
	if obs.Box.IsZero() {
		return img, nil
	}

	crop := image.Rect(obs.Box.Left, obs.Box.Top, obs.Box.Right, obs.Box.Bottom).
		Intersect(img.Bounds())
	if crop.Empty() {
		return img, nil
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(crop), nil
	}
	return img, nil
}

type nameRequest struct {
	Name string `json:"name"`
}

// handleNameCluster assigns a person name to a cluster and registers the
// cluster representative under that name for future matching.
func (s *Server) handleNameCluster(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if faces.SanitizePersonName(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	session, err := faces.LoadSession(s.cfg.Paths.SessionFile())
	if err != nil {
		respondError(w, http.StatusNotFound, "no scan session found")
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(session.Clusters) {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}

	session.Clusters[index].PersonName = req.Name
	if err := session.Save(s.cfg.Paths.SessionFile()); err != nil {
		respondError(w, http.StatusInternalServerError, "could not save session")
		return
	}

	registry, err := faces.LoadRegistry(s.cfg.Paths.PeopleFile())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load people registry")
		return
	}
	registry.Register(req.Name, session.Clusters[index].Representative().Embedding)
	if err := registry.Save(s.cfg.Paths.PeopleFile()); err != nil {
		respondError(w, http.StatusInternalServerError, "could not save people registry")
		return
	}

	respondJSON(w, http.StatusOK, clusterSummary{
		Index:      index,
		PersonName: req.Name,
		Size:       session.Clusters[index].Size(),
	})
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	registry, err := faces.LoadRegistry(s.cfg.Paths.PeopleFile())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load people registry")
		return
	}

	type person struct {
		Name string `json:"name"`
	}
	people := make([]person, 0, registry.Len())
	for _, p := range registry.People() {
		people = append(people, person{Name: p.Name})
	}
	respondJSON(w, http.StatusOK, map[string]any{"people": people})
}

type startScanRequest struct {
	Source    string  `json:"source"`
	Tolerance float64 `json:"tolerance"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		respondError(w, http.StatusBadRequest, "source directory is required")
		return
	}
	if info, err := os.Stat(req.Source); err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "source is not a readable directory")
		return
	}

	job := s.jobs.CreateJob(req.Source, req.Tolerance)

	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	go s.runScan(ctx, job)

	respondJSON(w, http.StatusAccepted, job.snapshot())
}

// runScan drives the pipeline for one job, forwarding progress to SSE
// listeners and persisting the session on success.
func (s *Server) runScan(ctx context.Context, job *ScanJob) {
	job.setStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "started", Data: job.snapshot()})

	events := make(chan scan.Event, eventChannelBuffer)
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for ev := range events {
			if ev.Phase == scan.PhaseExtracting {
				job.setProgress(ev.Current, ev.Total)
			}
			job.SendEvent(JobEvent{Type: "progress", Data: ev})
		}
	}()

	session, stats, err := s.runner.Run(ctx, job.Source, job.Tolerance, events)
	close(events)
	<-forwardDone

	switch {
	case errors.Is(err, context.Canceled):
		job.finish(JobStatusCancelled, 0, 0, "")
	case err != nil:
		s.log.WithError(err).Errorf("scan job %s failed", job.ID)
		job.finish(JobStatusFailed, 0, 0, err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
	default:
		facesFound := len(session.Observations())
		if saveErr := session.Save(s.cfg.Paths.SessionFile()); saveErr != nil {
			s.log.WithError(saveErr).Errorf("scan job %s could not save session", job.ID)
			job.finish(JobStatusFailed, facesFound, len(session.Clusters), saveErr.Error())
			job.SendEvent(JobEvent{Type: "failed", Message: saveErr.Error()})
			return
		}
		job.setProgress(stats.Scanned, stats.Scanned)
		job.finish(JobStatusCompleted, facesFound, len(session.Clusters), "")
		job.SendEvent(JobEvent{Type: "completed", Data: job.snapshot()})
	}
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.snapshot())
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.snapshot())
}

func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// handleScanEvents streams job events as SSE until the job reaches a
// terminal state or the client disconnects.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := job.AddListener()
	defer job.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", job.snapshot())
	if isJobTerminal(job.GetStatus()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
