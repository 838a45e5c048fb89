package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/latency.report/internal/stats"
)

// renderChart renders an HTML line chart of a session's latencies using
// go-echarts. This is a debugging view, not part of the JSON API proper.
func (s *Server) renderChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.sessionID(r)
	if id == "" {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusBadRequest, "No session_id and no active session")
		return
	}

	latencies, err := s.db.Latencies(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve latencies: %v", err))
		return
	}

	summary := stats.Summarise(latencies)

	xAxis := make([]string, len(latencies))
	data := make([]opts.LineData, len(latencies))
	for i, v := range latencies {
		xAxis[i] = strconv.Itoa(i + 1)
		data[i] = opts.LineData{Value: v / 1000}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Latency", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Input to photon latency",
			Subtitle: fmt.Sprintf("session=%s n=%d mean=%.2fms p95=%.2fms", id, summary.Count, summary.Mean, summary.P95),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "measurement"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("latency", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
