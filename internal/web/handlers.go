package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhaambo/NetscapeX-CLI/internal/capture"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
	"github.com/zhaambo/NetscapeX-CLI/internal/pipeline"
	"github.com/zhaambo/NetscapeX-CLI/internal/report"
	"github.com/zhaambo/NetscapeX-CLI/internal/storage"
)

// defaultRunsLimit caps GET /api/runs when no limit is given.
const defaultRunsLimit = 50

// HeaderRunID carries the id of the run produced by POST /api/analyze.
const HeaderRunID = "X-Run-Id"

// handleAnalyze reads a pcap or pcapng request body, runs the pipeline and
// responds with the JSON report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if s.maxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	pkts, stats, err := capture.Read(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("capture exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := r.URL.Query().Get("name")
	if source == "" {
		source = "upload"
	}
	s.log.Info("Analyzing %s: %d frames, %d IP packets", source, stats.Frames, stats.Packets)

	run, err := s.pipeline.Run(r.Context(), source, pkts)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrTooManyPackets), errors.Is(err, pipeline.ErrTooManyFlows):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			s.log.Error("Analysis of %s failed: %v", source, err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.sink(run)

	data, err := report.Marshal(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set(HeaderRunID, run.ID)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// sink hands a finished run to the optional store and publisher. Their
// failures are logged; the caller still receives the report.
func (s *Server) sink(run *model.Run) {
	if s.store != nil {
		if err := s.store.SaveRun(run); err != nil {
			s.log.Error("Saving run %s: %v", run.ID, err)
		}
	}
	if err := s.publisher.PublishRun(run); err != nil {
		s.log.Error("Publishing run %s: %v", run.ID, err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "result storage is not configured")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.store.Runs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []storage.RunInfo{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	data, err := report.Marshal(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Summary(run))
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "result storage is not configured")
		return nil, false
	}
	id := mux.Vars(r)["id"]
	run, err := s.store.RunResults(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"storage": s.store != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
