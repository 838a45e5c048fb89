// Command capture runs a measurement campaign against a connected
// latency tester: it switches the device to summary reporting, fires a
// series of synthetic triggers, collects the resulting latency
// measurements and writes them out as CSV alongside a statistical
// summary.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/latency.report/internal/client"
	"github.com/banshee-data/latency.report/internal/serialmux"
	"github.com/banshee-data/latency.report/internal/stats"
	"github.com/banshee-data/latency.report/internal/wire"
)

func main() {
	port := flag.String("port", "", "Serial port the tester is attached to (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	count := flag.Int("count", 50, "Number of triggers to fire")
	interval := flag.Duration("interval", 500*time.Millisecond, "Delay between triggers")
	rate := flag.Int("rate", 2000, "Device poll rate in Hz")
	bias := flag.Int("bias", 150, "Threshold bias pushed to the device before the run")
	out := flag.String("out", "", "CSV output path (default stdout)")
	dev := flag.Bool("dev", false, "Use a mock device instead of real hardware")
	flag.Parse()

	if err := run(*port, *baud, *count, *interval, *rate, *bias, *out, *dev); err != nil {
		fmt.Fprintf(os.Stderr, "capture: %v\n", err)
		os.Exit(1)
	}
}

func run(port string, baud, count int, interval time.Duration, rate, bias int, out string, dev bool) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if rate < 1 || rate > 65535 {
		return fmt.Errorf("rate %d out of range", rate)
	}
	if bias < -32768 || bias > 32767 {
		return fmt.Errorf("bias %d out of range", bias)
	}

	var mux serialmux.MuxInterface
	if dev {
		mux = serialmux.NewMockSerialMux(mockSummaries(count), interval/4)
	} else {
		if port == "" {
			return fmt.Errorf("either -port or -dev is required")
		}
		opts, err := serialmux.PortOptions{BaudRate: baud}.Normalise()
		if err != nil {
			return err
		}
		m, err := serialmux.NewRealSerialMux(port, opts)
		if err != nil {
			return fmt.Errorf("open %s: %w", port, err)
		}
		mux = m
	}
	defer mux.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go mux.Monitor(ctx)

	c := client.New(mux)
	if err := c.SetPollRate(uint16(rate)); err != nil {
		return fmt.Errorf("set poll rate: %w", err)
	}
	if err := c.SetReportMode(wire.ModeSummary); err != nil {
		return fmt.Errorf("set report mode: %w", err)
	}
	if err := c.SetThreshold(int16(bias)); err != nil {
		return fmt.Errorf("set threshold: %w", err)
	}

	reports := c.Reports(ctx)
	summaries := make([]wire.SummaryReport, 0, count)

	// Fire triggers on a ticker while draining the report stream: the
	// device keeps reporting its own button presses too, and every
	// summary is a measurement worth keeping.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fired := 0
	fmt.Fprintf(os.Stderr, "firing %d triggers at %s intervals\n", count, interval)

collect:
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "interrupted, writing what we have")
			break collect
		case <-ticker.C:
			if fired < count {
				if err := c.ManualTrigger(); err != nil {
					return fmt.Errorf("trigger %d: %w", fired+1, err)
				}
				fired++
			}
		case r, ok := <-reports:
			if !ok {
				break collect
			}
			s, isSummary := r.(wire.SummaryReport)
			if !isSummary {
				continue
			}
			summaries = append(summaries, s)
			fmt.Fprintf(os.Stderr, "measurement %d/%d: %.2fms (threshold %d)\n",
				len(summaries), count, float64(s.LatencyMicros)/1000, s.Threshold)
			if len(summaries) >= count && fired >= count {
				break collect
			}
		}
	}

	if len(summaries) == 0 {
		return fmt.Errorf("no measurements collected")
	}

	if err := writeCSV(out, summaries); err != nil {
		return err
	}

	latencies := make([]float64, len(summaries))
	for i, s := range summaries {
		latencies[i] = float64(s.LatencyMicros)
	}
	printSummary(os.Stderr, stats.Summarise(latencies))
	return nil
}

func writeCSV(path string, summaries []wire.SummaryReport) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"latency_us", "threshold"}); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{
			strconv.FormatUint(s.LatencyMicros, 10),
			strconv.FormatUint(uint64(s.Threshold), 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printSummary(f *os.File, s stats.Summary) {
	fmt.Fprintf(f, "\nmeasurements: %d\n", s.Count)
	fmt.Fprintf(f, "mean:   %8.2fms (stddev %.2fms)\n", s.Mean, s.StdDev)
	fmt.Fprintf(f, "min:    %8.2fms\n", s.Min)
	fmt.Fprintf(f, "p50:    %8.2fms\n", s.P50)
	fmt.Fprintf(f, "p95:    %8.2fms\n", s.P95)
	fmt.Fprintf(f, "p99:    %8.2fms\n", s.P99)
	fmt.Fprintf(f, "max:    %8.2fms\n", s.Max)
}

// mockSummaries builds a plausible replay stream for -dev runs.
func mockSummaries(n int) []wire.Frame {
	frames := make([]wire.Frame, 0, n)
	for i := 0; i < n; i++ {
		// Wander between roughly 7ms and 14ms.
		latency := uint64(7000 + (i*613)%7000)
		frames = append(frames, wire.EncodeSummary(latency, 1350))
	}
	return frames
}
