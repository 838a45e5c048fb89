package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/latency.report/internal/monitoring"
	"github.com/banshee-data/latency.report/internal/wire"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 2 * time.Second,
	// the service fronts its own UI; cross-origin browsers are fine here
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveEvent is the JSON shape pushed over the live websocket. Exactly one
// of the payload fields is set, matching the Type field.
type liveEvent struct {
	Type string `json:"type"`

	Raw     *rawEvent     `json:"raw,omitempty"`
	Summary *summaryEvent `json:"summary,omitempty"`
}

type rawEvent struct {
	TimestampMicros uint64 `json:"timestamp_us"`
	Brightness      uint16 `json:"brightness"`
	Trigger         bool   `json:"trigger"`
}

type summaryEvent struct {
	LatencyMicros uint64  `json:"latency_us"`
	LatencyMs     float64 `json:"latency_ms"`
	Threshold     uint16  `json:"threshold"`
}

// streamLive upgrades the connection to a websocket and pushes decoded raw
// and summary reports as they arrive. Settings echoes are not forwarded.
func (s *Server) streamLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	defer conn.Close()

	// drain client frames so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	reports := s.c.Reports(r.Context())
	for report := range reports {
		var ev liveEvent
		switch rep := report.(type) {
		case wire.RawReport:
			ev = liveEvent{Type: "raw", Raw: &rawEvent{
				TimestampMicros: rep.TimestampMicros,
				Brightness:      rep.Brightness,
				Trigger:         rep.Trigger,
			}}
		case wire.SummaryReport:
			ev = liveEvent{Type: "summary", Summary: &summaryEvent{
				LatencyMicros: rep.LatencyMicros,
				LatencyMs:     float64(rep.LatencyMicros) / 1000,
				Threshold:     rep.Threshold,
			}}
		default:
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			monitoring.Logf("api: live stream closed: %v", err)
			return
		}
	}
}
