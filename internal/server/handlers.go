package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/config"
	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// gexHandler runs a one-shot gamma analysis for the ticker.
func (s *Server) gexHandler(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if !config.ValidTickers[ticker] {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown ticker: " + ticker})
		return
	}

	summary, err := s.gexEngine.Analyze(r.Context(), ticker, gex.Options{})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, gexdata.ErrDataUnavailable) {
			status = http.StatusNotFound
		}
		s.logger.Warn("gex analysis failed", zap.String("ticker", ticker), zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) squeezeListHandler(w http.ResponseWriter, r *http.Request) {
	statuses := s.squeezeEngine.GetSqueezeStatus("")
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) squeezeHandler(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	statuses := s.squeezeEngine.GetSqueezeStatus(ticker)
	if len(statuses) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no squeeze state for " + ticker})
		return
	}
	writeJSON(w, http.StatusOK, statuses[0])
}

func (s *Server) signalHandler(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if !config.ValidTickers[ticker] {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown ticker: " + ticker})
		return
	}
	writeJSON(w, http.StatusOK, s.squeezeEngine.GetSqueezeSignal(ticker))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
