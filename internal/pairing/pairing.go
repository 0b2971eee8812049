// Package pairing implements WaveBird "virtual pairing": a software
// channel-scan/qualify/bind state machine that lets a receiver bind to a
// transmitter without an OEM receiver's physical channel-selection dial.
package pairing

import "github.com/loopj/wavephoenix/internal/radio"

// State is one of the pairing state machine's four states.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateQualifying
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateQualifying:
		return "qualifying"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// FinishStatus reports why pairing finished.
type FinishStatus int

const (
	FinishSuccess FinishStatus = iota
	FinishCancelled
	FinishTimeout
)

// Timeouts, expressed as durations of the monotonic clock the caller
// supplies to New (matching the original firmware's microsecond
// constants: 30s overall, 10ms per-channel detect, 200ms per-channel
// qualify).
const (
	OverallTimeoutMicros      = 30_000_000
	ChannelDetectTimeoutMicros = 10_000
	ChannelQualifyTimeoutMicros = 200_000
)

// DefaultQualifyThreshold is the number of packets that must pass the
// qualify function before a candidate channel is accepted.
const DefaultQualifyThreshold = 5

// QualifyFunc decides whether a packet counts toward the qualification
// threshold for the channel currently being scanned. The default accepts
// every packet.
type QualifyFunc func(packet []byte) bool

// StartedFunc is invoked when pairing begins scanning.
type StartedFunc func()

// FinishedFunc is invoked when pairing ends, successfully or not.
type FinishedFunc func(status FinishStatus, channel uint8)

// PacketFunc is invoked for every packet received once pairing is ACTIVE.
type PacketFunc func(packet []byte)

// ErrorFunc is invoked for radio errors relayed while ACTIVE.
type ErrorFunc func(err error)

// Machine drives the channel scan/qualify/bind state machine. It suspends
// normal SI command handling while pairing (the caller is responsible for
// that, by checking State() != StateIdle).
type Machine struct {
	phy radio.PHY

	QualifyFn        QualifyFunc
	QualifyThreshold uint8

	Started  StartedFunc
	Finished FinishedFunc
	Packet   PacketFunc
	Error    ErrorFunc

	state State

	priorChannel    uint8
	candidate       uint8
	firstScan       bool
	qualifiedCount  uint8
	now             func() int64
	scanStartedAt   int64
	channelEnteredAt int64
}

// New creates a Machine driving phy. now must return a monotonic clock in
// microseconds, matching radio.h's time_micros().
func New(phy radio.PHY, now func() int64) *Machine {
	return &Machine{
		phy:              phy,
		QualifyThreshold: DefaultQualifyThreshold,
		state:            StateIdle,
		now:              now,
	}
}

// State returns the pairing state machine's current state.
func (m *Machine) State() State {
	return m.state
}

// StartPairing remembers the current channel, resets pairing state, begins
// scanning, and fires Started. It does not stop reception on the current
// channel.
func (m *Machine) StartPairing() {
	m.priorChannel = m.phy.Channel()
	m.candidate = 0
	m.firstScan = true
	m.qualifiedCount = 0
	m.scanStartedAt = m.now()
	m.state = StateScanning

	if m.Started != nil {
		m.Started()
	}
}

// StopPairing restores the channel that was active before pairing began
// and fires Finished(FinishCancelled).
func (m *Machine) StopPairing() {
	m.phy.SetChannel(m.priorChannel)
	m.state = StateIdle

	if m.Finished != nil {
		m.Finished(FinishCancelled, m.priorChannel)
	}
}

// Tick advances the state machine by one main-loop iteration. It should
// be called every time the receiver's periodic tick runs.
func (m *Machine) Tick() {
	switch m.state {
	case StateScanning:
		m.tickScanning()
	case StateQualifying:
		m.tickQualifying()
	case StateActive:
		m.tickActive()
	}
}

func (m *Machine) tickScanning() {
	if m.phy.SyncDetected() {
		m.channelEnteredAt = m.now()
		m.state = StateQualifying
		return
	}

	if m.now()-m.scanStartedAt >= OverallTimeoutMicros {
		m.phy.SetChannel(m.priorChannel)
		m.state = StateIdle
		if m.Finished != nil {
			m.Finished(FinishTimeout, m.priorChannel)
		}
		return
	}

	if m.firstScan || m.now()-m.channelEnteredAt >= ChannelDetectTimeoutMicros {
		if m.firstScan {
			m.firstScan = false
		} else {
			m.candidate = (m.candidate + 1) % radio.ChannelCount
		}
		m.channelEnteredAt = m.now()
		m.phy.SetChannel(m.candidate)
	}
}

func (m *Machine) tickQualifying() {
	qualify := m.QualifyFn
	if qualify == nil {
		qualify = func([]byte) bool { return true }
	}

	m.phy.SetCallbacks(func(packet []byte) {
		if qualify(packet) {
			m.qualifiedCount++
		}
	}, nil)
	m.phy.Process()

	threshold := m.QualifyThreshold
	if threshold == 0 {
		threshold = DefaultQualifyThreshold
	}

	if m.qualifiedCount >= threshold {
		m.phy.SetChannel(m.candidate)
		m.state = StateActive
		if m.Finished != nil {
			m.Finished(FinishSuccess, m.candidate)
		}
		return
	}

	if m.now()-m.channelEnteredAt >= ChannelQualifyTimeoutMicros {
		m.qualifiedCount = 0
		m.state = StateScanning
	}
}

func (m *Machine) tickActive() {
	m.phy.SetCallbacks(func(packet []byte) {
		if m.Packet != nil {
			m.Packet(packet)
		}
	}, func(err error) {
		if m.Error != nil {
			m.Error(err)
		}
	})
	m.phy.Process()
}
