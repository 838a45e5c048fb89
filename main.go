// Command latency-report is the host service for the latency tester: it
// owns the serial connection to the device, records reports into sqlite,
// publishes measurements over MQTT, and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/latency.report/internal/api"
	"github.com/banshee-data/latency.report/internal/client"
	"github.com/banshee-data/latency.report/internal/config"
	"github.com/banshee-data/latency.report/internal/db"
	"github.com/banshee-data/latency.report/internal/mqtt"
	"github.com/banshee-data/latency.report/internal/serialmux"
	"github.com/banshee-data/latency.report/internal/version"
	"github.com/banshee-data/latency.report/internal/wire"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	devMode    = flag.Bool("dev", false, "Run against a mock device")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	serialPort = flag.String("port", "", "Serial port path (overrides config)")
)

func loadConfig() config.Config {
	if *configPath == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// mockFrames is the report stream the mock device replays in dev mode: a
// brightness ramp with a trigger pulse and the summary it would produce.
func mockFrames() []wire.Frame {
	return []wire.Frame{
		wire.EncodeRaw(500, 1200, false),
		wire.EncodeRaw(1000, 1210, false),
		wire.EncodeRaw(1500, 1195, true),
		wire.EncodeRaw(2000, 2400, true),
		wire.EncodeSummary(8500, 1354),
	}
}

func openMux(cfg config.Config) serialmux.MuxInterface {
	if *devMode {
		log.Print("dev mode: using mock device")
		return serialmux.NewMockSerialMux(mockFrames(), 50*time.Millisecond)
	}

	port := cfg.Serial.Port
	if *serialPort != "" {
		port = *serialPort
	}
	if port == "" {
		log.Print("no serial port configured; device commands are disabled")
		return serialmux.NewDisabledSerialMux()
	}

	m, err := serialmux.NewRealSerialMux(port, cfg.Serial.Options)
	if err != nil {
		log.Fatalf("failed to open serial port %s: %v", port, err)
	}
	return m
}

// applyDeviceSettings pushes the configured session settings to the tester.
func applyDeviceSettings(c *client.Client, cfg config.Config) error {
	if err := c.SetPollRate(cfg.Device.PollRateHz); err != nil {
		return err
	}
	mode, err := cfg.ReportMode()
	if err != nil {
		return err
	}
	if err := c.SetReportMode(mode); err != nil {
		return err
	}
	if err := c.SetThreshold(cfg.Device.ThresholdBias); err != nil {
		return err
	}
	kind, code, err := cfg.Action()
	if err != nil {
		return err
	}
	return c.SetAction(kind, code)
}

func main() {
	flag.Parse()

	log.Printf("latency-report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := loadConfig()
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}

	m := openMux(cfg)
	defer m.Close()

	database, err := db.NewDB(cfg.DB.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	var publisher mqtt.Publisher = mqtt.NoopPublisher{}
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
	}
	defer publisher.Close()

	c := client.New(m)

	mode, _ := cfg.ReportMode()
	kind, code, _ := cfg.Action()
	sessionID, err := database.CreateSession(db.Session{
		PollRateHz:    cfg.Device.PollRateHz,
		ReportMode:    uint8(mode),
		ThresholdBias: cfg.Device.ThresholdBias,
		ActionKind:    uint8(kind),
		ActionCode:    code,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	log.Printf("recording session %s", sessionID)
	defer func() {
		if err := database.EndSession(sessionID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}()

	if err := applyDeviceSettings(c, cfg); err != nil {
		log.Printf("failed to apply device settings: %v", err)
	}

	publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP"})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// record the report stream into the session and publish measurements
	wg.Add(1)
	go func() {
		defer wg.Done()
		for report := range c.Reports(ctx) {
			switch r := report.(type) {
			case wire.RawReport:
				if err := database.RecordRawSample(sessionID, r); err != nil {
					log.Printf("failed to record raw sample: %v", err)
				}
			case wire.SummaryReport:
				if err := database.RecordMeasurement(sessionID, r); err != nil {
					log.Printf("failed to record measurement: %v", err)
				}
				err := publisher.PublishMeasurement(mqtt.Measurement{
					SessionID:     sessionID,
					Timestamp:     time.Now(),
					LatencyMicros: r.LatencyMicros,
					LatencyMs:     float64(r.LatencyMicros) / 1000,
					Threshold:     r.Threshold,
				})
				if err != nil {
					log.Printf("failed to publish measurement: %v", err)
				}
			}
		}
		log.Print("recorder routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		m.AttachAdminRoutes(mux)

		apiServer := api.NewServer(c, database, func() string { return sessionID })
		mux.Handle("/api/", apiServer.ServeMux())

		server := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", cfg.HTTP.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "SIGTERM"})
	log.Printf("Graceful shutdown complete")
}
