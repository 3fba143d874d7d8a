package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/logging"
)

// multipartMemory is the part of a multipart form kept in memory before
// the standard library spills to disk.
const multipartMemory = 32 << 20

// handleFetch starts a background catalog fetch.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.service.StartFetch(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// handleImportHeaders returns the header row of an uploaded CSV so the
// client can build a mapping.
func (s *Server) handleImportHeaders(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	headers, err := s.service.ReadHeaders(file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"headers": headers})
}

// handleImport starts a background import of an uploaded CSV. The optional
// "mapping" field is a JSON array of {header, field, type}; without it
// every header maps onto the field of the same name.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	var mappings []csvio.Mapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: mapping: %v", core.ErrInvalidRequest, err))
			return
		}
	}

	// The multipart file is removed when the request ends; the job reads a
	// copy it owns.
	spool, size, err := spoolFile(file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if len(mappings) == 0 {
		headers, err := csvio.ReadHeaders(spool)
		if err == nil {
			_, err = spool.Seek(0, io.SeekStart)
		}
		if err != nil {
			spool.Close()
			s.respondError(w, r, err)
			return
		}
		mappings = csvio.IdentityMappings(headers, s.service.Store().Columns())
	}

	jobID, err := s.service.StartImport(r.Context(), header.Filename, spool, size, mappings)
	if err != nil {
		spool.Close()
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "job_id", jobID).Info("import accepted",
		"file", header.Filename,
		"bytes", size,
		"mappings", len(mappings),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// formFile parses a bounded multipart form and returns its "file" part.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Import.MaxFileSize
	if r.ContentLength > maxSize {
		return nil, nil, &http.MaxBytesError{Limit: maxSize}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(min(maxSize, multipartMemory)); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return file, header, nil
}

// spooledFile is a temporary copy of an upload, removed on Close.
type spooledFile struct {
	*os.File
}

func (f *spooledFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// spoolFile copies src into a temporary file rewound to the start.
func spoolFile(src io.Reader) (*spooledFile, int64, error) {
	tmp, err := os.CreateTemp("", "pokelab-import-*.csv")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool file: %w", err)
	}
	f := &spooledFile{File: tmp}

	n, err := io.Copy(tmp, src)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("spool upload: %w", err)
	}
	return f, n, nil
}

// jobStatusResponse pairs the latest progress with the result once done.
type jobStatusResponse struct {
	Progress core.JobProgress `json:"progress"`
	Result   *core.JobResult  `json:"result,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	progress, result, err := s.service.JobStatus(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{Progress: progress, Result: result})
}

// handleCancelJob cancels a running job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelJob(chi.URLParam(r, "jobID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleJobProgress streams job progress via Server-Sent Events.
// Supports resumption via Last-Event-ID (or the lastEventId query
// parameter) for reconnection.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection.
	lastEventIDStr := r.Header.Get("Last-Event-ID")
	if lastEventIDStr == "" {
		lastEventIDStr = r.URL.Query().Get("lastEventId")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: the job reached a terminal phase.
				_, result, _ := s.service.JobStatus(jobID)
				data, _ := json.Marshal(result)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				rc.Flush()
				return
			}

			currentPercent := progress.Percent()
			if lastEventIDStr != "" && currentPercent <= lastEventID && !progress.Phase.Done() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", currentPercent, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}
