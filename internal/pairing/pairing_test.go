package pairing

import (
	"testing"

	"github.com/loopj/wavephoenix/internal/radio"
)

type fakeClock struct{ t int64 }

func (c *fakeClock) now() int64  { return c.t }
func (c *fakeClock) advance(d int64) { c.t += d }

func TestStartPairingEntersScanning(t *testing.T) {
	phy := radio.NewFake()
	clock := &fakeClock{}
	m := New(phy, clock.now)

	var started bool
	m.Started = func() { started = true }

	m.StartPairing()

	if !started {
		t.Fatalf("Started callback not invoked")
	}
	if m.State() != StateScanning {
		t.Fatalf("State = %v, want scanning", m.State())
	}
}

func TestScanAdvancesChannelOnDetectTimeout(t *testing.T) {
	phy := radio.NewFake()
	clock := &fakeClock{}
	m := New(phy, clock.now)
	m.StartPairing()

	m.Tick() // first tick selects candidate 0 without advancing
	first := phy.Channel()

	clock.advance(ChannelDetectTimeoutMicros + 1)
	m.Tick()
	second := phy.Channel()

	if first == second {
		t.Fatalf("channel did not advance: %d == %d", first, second)
	}
}

func TestScanFirstTickVisitsCandidateZeroWithoutAdvancing(t *testing.T) {
	phy := radio.NewFake()
	phy.SetChannel(9)
	clock := &fakeClock{}
	m := New(phy, clock.now)

	m.StartPairing()
	m.Tick()

	if got := phy.Channel(); got != 0 {
		t.Fatalf("Channel = %d, want 0 on the first scan tick", got)
	}

	clock.advance(ChannelDetectTimeoutMicros + 1)
	m.Tick()

	if got := phy.Channel(); got != 1 {
		t.Fatalf("Channel = %d, want 1 after the second scan tick", got)
	}
}

func TestQualifyThenActive(t *testing.T) {
	phy := radio.NewFake()
	clock := &fakeClock{}
	m := New(phy, clock.now)
	m.QualifyThreshold = 2

	var finishedStatus FinishStatus
	var finishedCh uint8
	m.Finished = func(status FinishStatus, channel uint8) {
		finishedStatus = status
		finishedCh = channel
	}

	m.StartPairing()
	m.Tick() // scanning -> selects candidate 0 (first scan, no advance)

	phy.RaiseSync()
	m.Tick() // scanning -> qualifying

	if m.State() != StateQualifying {
		t.Fatalf("State = %v, want qualifying", m.State())
	}

	phy.QueuePacket([]byte{0x01})
	m.Tick()
	phy.QueuePacket([]byte{0x02})
	m.Tick()

	if m.State() != StateActive {
		t.Fatalf("State = %v, want active", m.State())
	}
	if finishedStatus != FinishSuccess {
		t.Fatalf("finishedStatus = %v, want FinishSuccess", finishedStatus)
	}
	_ = finishedCh
}

func TestStopPairingRestoresChannelAndFiresCancelled(t *testing.T) {
	phy := radio.NewFake()
	phy.SetChannel(7)
	clock := &fakeClock{}
	m := New(phy, clock.now)

	var status FinishStatus
	m.Finished = func(s FinishStatus, ch uint8) { status = s }

	m.StartPairing()
	m.Tick()
	m.StopPairing()

	if phy.Channel() != 7 {
		t.Fatalf("Channel = %d, want 7 (restored)", phy.Channel())
	}
	if status != FinishCancelled {
		t.Fatalf("status = %v, want FinishCancelled", status)
	}
}
