package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/logging"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// handleState returns the collection summary and running jobs.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleListRecords returns one sorted page of records.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Records(parseQuery(r)))
}

func (s *Server) handleInsertRecord(w http.ResponseWriter, r *http.Request) {
	var rec pokemon.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		s.respondError(w, r, err)
		return
	}
	if rec.Name == "" {
		rec.Name = pokemon.DefaultName
	}

	writeJSON(w, http.StatusCreated, s.service.InsertRecord(rec))
}

// handleUpdateRecord merges a JSON patch into the first record with the ID.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var patch store.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.UpdateRecord(id, patch); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleRemoveRecord deletes every record with the ID.
func (s *Server) handleRemoveRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := s.service.RemoveRecord(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// bulkUpdateRequest selects records by filters and applies one patch.
type bulkUpdateRequest struct {
	Filters []store.Filter `json:"filters"`
	Patch   store.Patch    `json:"patch"`
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := s.service.BulkUpdate(req.Filters, req.Patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("bulk update",
		"filters", len(req.Filters),
		"updated", n,
	)
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

type addColumnRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// handleAddColumn adds a custom column to the schema.
func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req addColumnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	col, err := s.service.AddColumn(req.Name, req.Type)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleRemoveColumn(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveColumn(chi.URLParam(r, "columnID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReset empties the collection and schema.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.service.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleExport downloads the collection as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.Export(&buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := csvio.ExportFilename(time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())
}
