package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/latency.report/internal/client"
	"github.com/banshee-data/latency.report/internal/db"
	"github.com/banshee-data/latency.report/internal/wire"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	c  *client.Client
	db *db.DB

	// currentSession returns the ID of the session currently being
	// recorded, or "" when recording is off. Set by the service.
	currentSession func() string
}

func NewServer(c *client.Client, database *db.DB, currentSession func() string) *Server {
	if currentSession == nil {
		currentSession = func() string { return "" }
	}
	return &Server{
		c:              c,
		db:             database,
		currentSession: currentSession,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/measurements", s.listMeasurements)
	mux.HandleFunc("/api/samples", s.listRawSamples)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/settings", s.applySettings)
	mux.HandleFunc("/api/trigger", s.fireTrigger)
	mux.HandleFunc("/api/live", s.streamLive)
	mux.HandleFunc("/api/chart", s.renderChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Settings carries the device settings accepted by the settings endpoint.
// Absent fields leave the corresponding device setting untouched.
type Settings struct {
	PollRateHz    *uint16 `json:"poll_rate_hz,omitempty"`
	ReportMode    *uint8  `json:"report_mode,omitempty"`
	ThresholdBias *int16  `json:"threshold_bias,omitempty"`
	ActionKind    *uint8  `json:"action_kind,omitempty"`
	ActionCode    *uint8  `json:"action_code,omitempty"`
}

func (s *Server) applySettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid settings body: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if settings.PollRateHz != nil {
		if err := s.c.SetPollRate(*settings.PollRateHz); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if settings.ReportMode != nil {
		if err := s.c.SetReportMode(wire.ReportMode(*settings.ReportMode)); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if settings.ThresholdBias != nil {
		if err := s.c.SetThreshold(*settings.ThresholdBias); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if settings.ActionKind != nil || settings.ActionCode != nil {
		if settings.ActionKind == nil || settings.ActionCode == nil {
			s.writeJSONError(w, http.StatusBadRequest, "action_kind and action_code must be set together")
			return
		}
		if err := s.c.SetAction(wire.ActionKind(*settings.ActionKind), *settings.ActionCode); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) fireTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.c.ManualTrigger(); err != nil {
		http.Error(w, "Failed to send trigger", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Trigger sent successfully")
}
