package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/logging"
)

// multipartOverhead is the body allowance on top of the file itself for
// boundaries and the options field.
const multipartOverhead = 1 << 20

// progressPollInterval is how often the event stream samples a job.
const progressPollInterval = 250 * time.Millisecond

type upload struct {
	name string
	mime string
	data []byte
}

// readUpload reads the "file" part of a multipart request. The body is
// capped so oversized uploads fail before being buffered.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize)
		}
		return nil, fmt.Errorf("%w: read file: %v", core.ErrInvalidOptions, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: no file provided", core.ErrInvalidOptions)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &upload{
		name: header.Filename,
		mime: header.Header.Get("Content-Type"),
		data: data,
	}, nil
}

// decodeFormJSON decodes an optional JSON form field into v.
func decodeFormJSON(r *http.Request, field string, v any) error {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", core.ErrInvalidOptions, field, err)
	}
	return nil
}

type startImportResponse struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
}

// handleStartImport accepts a multipart upload with a "file" part and an
// "options" JSON field and answers 202 with the job id.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var opts core.ImportOptions
	if err := decodeFormJSON(r, "options", &opts); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	jobID, err := s.service.StartImport(ctx, core.ImportRequest{
		FileName: up.name,
		MimeType: up.mime,
		Data:     up.data,
		Options:  opts,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Location", "/api/imports/"+jobID)
	writeJSON(w, http.StatusAccepted, startImportResponse{
		JobID:     jobID,
		StatusURL: "/api/imports/" + jobID,
	})
}

// handleDetect previews format detection for an upload. The optional
// "toolSource" and "columnMapping" fields behave as they do for imports.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var mapping map[string]string
	if err := decodeFormJSON(r, "columnMapping", &mapping); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	preview, err := s.service.DetectFormat(r.Context(), core.DetectRequest{
		FileName:      up.name,
		MimeType:      up.mime,
		Data:          up.data,
		Tool:          core.ToolSource(r.FormValue("toolSource")),
		ColumnMapping: mapping,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// Whatever else fails here is the file's content.
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleClearImport removes a finished job; a running job answers 409.
func (s *Server) handleClearImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearJob(chi.URLParam(r, "jobID")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.service.CancelImport(jobID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	logging.WithFields(r.Context(), "job_id", jobID).Info("import cancel requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID, "status": "cancelling"})
}

type resolveRequest struct {
	Conflicts   []core.MergeConflict               `json:"conflicts"`
	Resolutions map[string]core.ConflictResolution `json:"resolutions"`
}

type resolveResponse struct {
	Conflicts []core.MergeConflict `json:"conflicts"`
}

func decodeResolveRequest(r *http.Request) (resolveRequest, error) {
	var req resolveRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, multipartOverhead))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: request body: %v", core.ErrInvalidOptions, err)
	}
	for key, res := range req.Resolutions {
		if _, err := core.ParseResolution(string(res.Resolution)); err != nil {
			return req, fmt.Errorf("%w (conflict %q)", err, key)
		}
	}
	return req, nil
}

// handleResolveConflicts overlays resolutions on a conflict list sent by
// the client. Nothing is stored.
func (s *Server) handleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	req, err := decodeResolveRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Conflicts: s.service.ResolveConflicts(req.Conflicts, req.Resolutions),
	})
}

// handleResolveJobConflicts overlays resolutions on a finished job's
// conflicts.
func (s *Server) handleResolveJobConflicts(w http.ResponseWriter, r *http.Request) {
	req, err := decodeResolveRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	conflicts, err := s.service.ResolveJobConflicts(chi.URLParam(r, "jobID"), req.Resolutions)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Conflicts: conflicts})
}

// handleImportEvents streams job snapshots as Server-Sent Events until
// the job finishes. The event id is the progress percentage so a client
// reconnecting with Last-Event-ID skips what it has already seen.
func (s *Server) handleImportEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.service.GetJob(jobID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	lastSent := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastSent, _ = strconv.Atoi(v)
	} else if v := r.URL.Query().Get("lastEventId"); v != "" {
		lastSent, _ = strconv.Atoi(v)
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	for {
		if job.Progress > lastSent || job.Status.Terminal() {
			event := "progress"
			if job.Status.Terminal() {
				event = string(job.Status)
			}
			data, err := json.Marshal(job)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", job.Progress, event, data)
			if err := rc.Flush(); err != nil {
				return
			}
			lastSent = job.Progress
		}
		if job.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err = s.service.GetJob(jobID)
		if err != nil {
			// Cleared or swept while streaming.
			_, _ = io.WriteString(w, "event: gone\ndata: {}\n\n")
			_ = rc.Flush()
			return
		}
	}
}
