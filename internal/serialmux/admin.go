package serialmux

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/latency.report/internal/wire"
)

// AttachAdminRoutes mounts the debug endpoints: a raw frame injector and an
// SSE tail of decoded reports.
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to write a command frame to the serial port. Accepts the
	// full 16-byte frame hex encoded, or opcode+payload with the checksum
	// byte omitted, in which case the frame is sealed before sending.
	debug.HandleSilentFunc("send-frame", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		raw := strings.TrimSpace(r.FormValue("frame"))
		if raw == "" {
			http.Error(w, "Missing frame", http.StatusBadRequest)
			return
		}
		data, err := hex.DecodeString(raw)
		if err != nil {
			http.Error(w, "Invalid hex", http.StatusBadRequest)
			return
		}
		var f wire.Frame
		switch len(data) {
		case wire.FrameSize:
			copy(f[:], data)
		case wire.FrameSize - 1:
			copy(f[:], data)
			f.Seal()
		default:
			http.Error(w, fmt.Sprintf("Frame must be %d or %d bytes", wire.FrameSize-1, wire.FrameSize), http.StatusBadRequest)
			return
		}
		if err := s.SendFrame(f); err != nil {
			http.Error(w, "Failed to write frame", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote %s frame to serial port", f.Opcode()))
	})

	// API endpoint to issue Server-Side Events (SSE) for each decoded report
	// coming from the serial port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case f, ok := <-c:
				if !ok {
					return
				}
				report, err := wire.DecodeReport(f)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s %+v\n\n", report.ReportOpcode(), report); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
