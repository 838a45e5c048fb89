// Command latency-chart renders an HTML comparison chart from one or
// more capture CSV files (as written by cmd/capture). Each file becomes
// a line series, with a bar chart of per-file mean and p95 underneath,
// which makes before/after comparisons of a settings change easy to
// eyeball.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/latency.report/internal/stats"
)

type series struct {
	name      string
	latencies []float64 // microseconds
	summary   stats.Summary
}

func main() {
	out := flag.String("out", "latency-chart.html", "Output HTML path")
	title := flag.String("title", "Input to photon latency", "Chart title")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: latency-chart [-out chart.html] capture1.csv [capture2.csv ...]")
		os.Exit(1)
	}

	var all []series
	for _, path := range flag.Args() {
		s, err := loadCSV(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "latency-chart: %s: %v\n", path, err)
			os.Exit(1)
		}
		all = append(all, s)
	}

	if err := render(*out, *title, all); err != nil {
		fmt.Fprintf(os.Stderr, "latency-chart: %v\n", err)
		os.Exit(1)
	}

	for _, s := range all {
		fmt.Printf("%-24s n=%-4d mean=%.2fms stddev=%.2fms p95=%.2fms\n",
			s.name, s.summary.Count, s.summary.Mean, s.summary.StdDev, s.summary.P95)
	}
	fmt.Printf("wrote %s\n", *out)
}

func loadCSV(path string) (series, error) {
	f, err := os.Open(path)
	if err != nil {
		return series{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return series{}, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "latency_us" {
			col = i
		}
	}
	if col < 0 {
		return series{}, fmt.Errorf("no latency_us column in header %v", header)
	}

	var latencies []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series{}, err
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return series{}, fmt.Errorf("bad latency %q: %w", rec[col], err)
		}
		latencies = append(latencies, v)
	}
	if len(latencies) == 0 {
		return series{}, fmt.Errorf("no measurements")
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return series{name: name, latencies: latencies, summary: stats.Summarise(latencies)}, nil
}

func render(out, title string, all []series) error {
	longest := 0
	for _, s := range all {
		if len(s.latencies) > longest {
			longest = len(s.latencies)
		}
	}
	xAxis := make([]string, longest)
	for i := range xAxis {
		xAxis[i] = strconv.Itoa(i + 1)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "per-measurement latency by capture"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "measurement"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	for _, s := range all {
		data := make([]opts.LineData, len(s.latencies))
		for i, v := range s.latencies {
			data[i] = opts.LineData{Value: v / 1000}
		}
		line.AddSeries(s.name, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean and p95 by capture"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	names := make([]string, len(all))
	means := make([]opts.BarData, len(all))
	p95s := make([]opts.BarData, len(all))
	for i, s := range all {
		names[i] = s.name
		means[i] = opts.BarData{Value: s.summary.Mean}
		p95s[i] = opts.BarData{Value: s.summary.P95}
	}
	bar.SetXAxis(names)
	bar.AddSeries("mean", means)
	bar.AddSeries("p95", p95s)

	page := components.NewPage()
	page.AddCharts(line, bar)

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
