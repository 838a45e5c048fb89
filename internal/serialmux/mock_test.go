package serialmux

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/banshee-data/latency.report/internal/wire"
)

func TestMockSerialMuxReplaysFrames(t *testing.T) {
	frames := []wire.Frame{
		wire.EncodeRaw(100, 500, false),
		wire.EncodeRaw(600, 510, true),
	}
	mux := NewMockSerialMux(frames, time.Millisecond)
	defer mux.Close()

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	var got []wire.Frame
	timeout := time.After(2 * time.Second)
	for len(got) < 4 {
		select {
		case f := <-ch:
			got = append(got, f)
		case <-timeout:
			t.Fatalf("timed out with %d frames", len(got))
		}
	}

	// frames repeat in order
	if got[0] != frames[0] || got[1] != frames[1] || got[2] != frames[0] || got[3] != frames[1] {
		t.Error("frames did not replay in order")
	}
}

func TestMockSerialPortCapturesCommands(t *testing.T) {
	mux := NewMockSerialMux(nil, time.Hour)
	defer mux.Close()

	cmd := wire.NewCommand(wire.SetPollRate, 500)
	if err := mux.SendFrame(cmd); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if got := mux.port.Commands(); !bytes.Equal(got, cmd[:]) {
		t.Errorf("captured %x, want %x", got, cmd[:])
	}
}

func TestFakeMuxRecordsSentFrames(t *testing.T) {
	fake := NewFakeMux()

	f := wire.NewCommand(wire.ManualTrigger, 0)
	if err := fake.SendFrame(f); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	sent := fake.Sent()
	if len(sent) != 1 || sent[0] != f {
		t.Errorf("Sent() = %v, want [%v]", sent, f)
	}
}

func TestFakeMuxInjectDeliversToSubscribers(t *testing.T) {
	fake := NewFakeMux()
	_, ch1 := fake.Subscribe()
	id2, ch2 := fake.Subscribe()

	f := wire.EncodeSummary(12345, 150)
	fake.Inject(f)

	if got := <-ch1; got != f {
		t.Errorf("subscriber 1 got %x, want %x", got, f)
	}
	if got := <-ch2; got != f {
		t.Errorf("subscriber 2 got %x, want %x", got, f)
	}

	fake.Unsubscribe(id2)
	fake.Inject(f)
	if got := <-ch1; got != f {
		t.Errorf("subscriber 1 got %x after unsubscribe of peer", got)
	}
	if _, ok := <-ch2; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestFakeMuxSendErr(t *testing.T) {
	fake := NewFakeMux()
	fake.SendErr = context.DeadlineExceeded
	if err := fake.SendFrame(wire.Frame{}); err == nil {
		t.Error("SendFrame should return the injected error")
	}
	if len(fake.Sent()) != 0 {
		t.Error("failed sends should not be recorded")
	}
}
