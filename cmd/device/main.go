// Command device runs the tester firmware loop on Linux hardware: it
// samples the light sensor, watches the physical button, generates
// synthetic input through uinput, and speaks the frame protocol over a
// serial port or TCP socket. With -sim it runs against a simulated screen
// so the whole stack can be exercised without hardware.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/banshee-data/latency.report/internal/device"
	"github.com/banshee-data/latency.report/internal/gpio"
	"github.com/banshee-data/latency.report/internal/hid"
	"github.com/banshee-data/latency.report/internal/timeutil"
	"github.com/banshee-data/latency.report/internal/wire"
)

var (
	serialPath = flag.String("port", "", "Serial port to speak the protocol on, e.g. /dev/ttyGS0")
	tcpListen  = flag.String("tcp", "", "TCP listen address to speak the protocol on instead of serial")
	simulate   = flag.Bool("sim", false, "Simulate the screen and sensor instead of using hardware")

	pollRate  = flag.Uint("rate", 2000, "Sampling rate in Hz")
	mode      = flag.String("mode", "summary", "Report mode: raw, summary, or combined")
	adcPath   = flag.String("adc", "/sys/bus/iio/devices/iio:device0/in_voltage0_raw", "IIO raw voltage attribute of the light sensor")
	gpioChip  = flag.String("gpio-chip", gpio.DefaultChip, "GPIO character device for the button")
	buttonPin = flag.Int("button-pin", gpio.ButtonPin, "GPIO line of the physical button")

	onRelease = flag.Bool("trigger-on-release", false, "Measure from release instead of press")
	text      = flag.Bool("text", false, "Emit raw reports as comma separated text lines")
)

func reportMode() wire.ReportMode {
	switch *mode {
	case "raw":
		return wire.ModeRaw
	case "summary":
		return wire.ModeSummary
	case "combined":
		return wire.ModeCombined
	}
	log.Fatalf("invalid -mode %q: must be raw, summary, or combined", *mode)
	return 0
}

func openLink() *device.StreamLink {
	switch {
	case *tcpListen != "":
		ln, err := net.Listen("tcp", *tcpListen)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", *tcpListen, err)
		}
		log.Printf("waiting for host connection on %s", *tcpListen)
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("failed to accept host connection: %v", err)
		}
		ln.Close()
		log.Printf("host connected from %s", conn.RemoteAddr())
		return device.NewStreamLink(conn)

	case *serialPath != "":
		port, err := serial.Open(*serialPath, &serial.Mode{BaudRate: 115200})
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", *serialPath, err)
		}
		return device.NewStreamLink(port)
	}

	log.Fatal("one of -port or -tcp is required")
	return nil
}

func main() {
	flag.Parse()

	cfg := device.Config{
		Link:             openLink(),
		Clock:            timeutil.RealClock{},
		PollRateHz:       uint16(*pollRate),
		Mode:             reportMode(),
		TriggerOnRelease: *onRelease,
		TextReports:      *text,
	}

	if *simulate {
		screen := newSimScreen()
		cfg.HID = screen
		cfg.ADC = screen
		cfg.Input = &device.FakeInput{Level: true}
	} else {
		adc, err := gpio.NewSysfsADC(*adcPath, 4095)
		if err != nil {
			log.Fatalf("failed to open light sensor: %v", err)
		}
		cfg.ADC = adc

		button, err := gpio.NewButtonLine(*gpioChip, *buttonPin)
		if err != nil {
			log.Fatalf("failed to open button: %v", err)
		}
		defer button.Close()
		cfg.Input = button

		input, err := hid.NewUInput()
		if err != nil {
			log.Fatalf("failed to create uinput device: %v", err)
		}
		defer input.Close()
		cfg.HID = input
	}

	engine, err := device.New(cfg)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("sampling at %d Hz, interval %s", *pollRate, engine.Interval())
	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("engine stopped: %v", err)
	}
	log.Print("shutdown complete")
}
