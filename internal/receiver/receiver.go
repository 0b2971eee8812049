// Package receiver ties the packet codec, message accessors, and SI device
// handlers together: it is the orchestrator that turns decoded WaveBird
// packets into GameCube/N64 device-state updates, enforces wireless-ID
// pinning, and invalidates stale input on a timeout.
package receiver

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/loopj/wavephoenix/internal/message"
	"github.com/loopj/wavephoenix/internal/packet"
	"github.com/loopj/wavephoenix/internal/pairing"
	"github.com/loopj/wavephoenix/internal/si"
	"github.com/loopj/wavephoenix/internal/si/gc"
	"github.com/loopj/wavephoenix/internal/si/n64"
)

// ControllerType selects which device this receiver presents as.
type ControllerType int

const (
	// ControllerGCWaveBird presents as an OEM WaveBird receiver.
	ControllerGCWaveBird ControllerType = iota
	// ControllerGCWired presents as an OEM wired GameCube controller.
	ControllerGCWired
	// ControllerGCWiredNoMotor presents as a wired GameCube controller
	// without a rumble motor.
	ControllerGCWiredNoMotor
	// ControllerN64 presents as a wired N64 controller.
	ControllerN64
)

func (c ControllerType) String() string {
	switch c {
	case ControllerGCWaveBird:
		return "gc-wavebird"
	case ControllerGCWired:
		return "gc-wired"
	case ControllerGCWiredNoMotor:
		return "gc-wired-no-motor"
	case ControllerN64:
		return "n64"
	default:
		return "unknown"
	}
}

// InputValidWindow is how long a decoded input-state packet's data is
// served before the device falls back to serving the origin.
const InputValidWindow = 100 * time.Millisecond

// wiredPinTTL bounds how long a wired-emulation pin on a first-seen
// wireless ID survives without a matching packet; unlike an OEM WaveBird
// receiver (which pins for the controller's GC-protocol lifetime), wired
// emulation has no "fix device" command to latch the pin explicitly, so we
// let it expire and re-acquire rather than lock onto a transmitter forever.
const wiredPinTTL = 5 * time.Second

// Stats tracks packet-level counters for diagnostics (exposed to
// cmd/wavephoenix-monitor).
type Stats struct {
	Packets      uint32
	RadioErrors  uint32
	DecodeErrors uint32
}

// Settings is the receiver's runtime-tunable configuration, normally
// loaded via internal/settings.
type Settings struct {
	Channel        uint8
	PinID          bool
	PairButtons    message.Buttons
	ControllerType ControllerType
}

// DefaultSettings mirrors the reference firmware's DEFAULT_SETTINGS: an
// OEM WaveBird receiver on channel 0 with ID pinning enabled, pairing on
// X+Y.
var DefaultSettings = Settings{
	Channel:        0,
	PinID:          true,
	PairButtons:    message.ButtonX | message.ButtonY,
	ControllerType: ControllerGCWaveBird,
}

// Receiver owns the SI engine, the emulated device, and the pairing
// lifecycle, updating device state from decoded WaveBird packets.
type Receiver struct {
	Settings Settings
	Stats    Stats

	engine *si.Engine
	gcDev  *gc.Controller
	n64Dev *n64.Controller

	n64OriginX, n64OriginY uint8

	enableSICommandHandling bool
	pairingActive           bool

	inputValidUntil time.Time
	now             func() time.Time

	pinCache *cache.Cache

	crcFn packet.CRCFunc
}

// New creates a Receiver bound to engine, configured per settings. now
// should return the current time (injectable for tests); it defaults to
// time.Now.
func New(engine *si.Engine, settings Settings, now func() time.Time) *Receiver {
	if now == nil {
		now = time.Now
	}

	r := &Receiver{
		Settings:                settings,
		engine:                  engine,
		enableSICommandHandling: true,
		now:                     now,
		pinCache:                cache.New(wiredPinTTL, wiredPinTTL),
	}
	r.InitializeController()
	return r
}

// InitializeController (re-)registers SI command handlers for the
// configured controller type. Called at startup and again after a
// successful pairing, matching the reference firmware's
// initialize_controller.
func (r *Receiver) InitializeController() {
	switch r.Settings.ControllerType {
	case ControllerGCWaveBird:
		r.gcDev = &gc.Controller{}
		gc.Init(r.engine, r.gcDev, gc.FlagTypeGC|gc.FlagGCWireless|gc.FlagGCNoMotor)
		r.enableSICommandHandling = true
	case ControllerGCWiredNoMotor:
		r.gcDev = &gc.Controller{}
		gc.Init(r.engine, r.gcDev, gc.FlagTypeGC|gc.FlagGCStandard|gc.FlagGCNoMotor)
	case ControllerGCWired:
		r.gcDev = &gc.Controller{}
		gc.Init(r.engine, r.gcDev, gc.FlagTypeGC|gc.FlagGCStandard)
	case ControllerN64:
		r.n64Dev = &n64.Controller{}
		n64.Init(r.engine, r.n64Dev)
		r.n64OriginX, r.n64OriginY = 0x80, 0x80
	}
}

// EnableSICommandHandling reports whether the SI engine's periodic tick
// should currently run (it's suspended during pairing).
func (r *Receiver) EnableSICommandHandling() bool {
	return r.enableSICommandHandling
}

// HandlePacket decodes a raw 19-byte WaveBird packet and applies it to
// device state: wireless-ID pinning, input-state mapping, or origin
// update.
func (r *Receiver) HandlePacket(raw []byte) error {
	r.Stats.Packets++

	var p packet.Packet
	copy(p[:], raw)

	msg, err := packet.Decode(&p, r.crcFn)
	if err != nil {
		r.Stats.DecodeErrors++
		return err
	}

	if r.Settings.PinID && !r.admitByWirelessID(msg) {
		return nil
	}

	if message.GetType(msg) == message.TypeInputState {
		r.applyInputState(msg)
	} else {
		r.applyOrigin(msg)
	}

	return nil
}

// admitByWirelessID enforces wireless-ID pinning: for a WaveBird-presenting
// device, this defers to the GC device's own fix/set-wireless-ID state
// (matching an OEM receiver exactly); for wired emulation there's no GC
// wireless-ID slot to pin against, so a TTL-cached "first seen" ID plays
// the same role, expiring if the transmitter goes quiet.
func (r *Receiver) admitByWirelessID(msg packet.Message) bool {
	wirelessID := message.ControllerID(msg)

	if r.Settings.ControllerType == ControllerGCWaveBird {
		if r.gcDev.WirelessIDFixed() {
			return r.gcDev.WirelessID() == wirelessID
		}
		r.gcDev.SetWirelessID(wirelessID)
		return true
	}

	key := "pinned"
	if cached, found := r.pinCache.Get(key); found {
		if cached.(uint16) != wirelessID {
			return false
		}
	}
	r.pinCache.SetDefault(key, wirelessID)
	return true
}

func (r *Receiver) applyInputState(msg packet.Message) {
	r.enableSICommandHandling = true
	r.inputValidUntil = r.now().Add(InputValidWindow)

	switch r.Settings.ControllerType {
	case ControllerN64:
		r.n64Dev.Input = n64.MapFromWaveBird(msg, r.n64OriginX, r.n64OriginY)
	default:
		// Assign button fields individually rather than replacing the
		// struct: NeedOrigin/ErrorLatch/Error/UseOrigin must persist
		// across input-state packets, not reset on every one.
		buttons := message.GetButtons(msg)
		r.gcDev.Input.Buttons.A = buttons&message.ButtonA != 0
		r.gcDev.Input.Buttons.B = buttons&message.ButtonB != 0
		r.gcDev.Input.Buttons.X = buttons&message.ButtonX != 0
		r.gcDev.Input.Buttons.Y = buttons&message.ButtonY != 0
		r.gcDev.Input.Buttons.Start = buttons&message.ButtonStart != 0
		r.gcDev.Input.Buttons.Left = buttons&message.ButtonLeft != 0
		r.gcDev.Input.Buttons.Right = buttons&message.ButtonRight != 0
		r.gcDev.Input.Buttons.Down = buttons&message.ButtonDown != 0
		r.gcDev.Input.Buttons.Up = buttons&message.ButtonUp != 0
		r.gcDev.Input.Buttons.Z = buttons&message.ButtonZ != 0
		r.gcDev.Input.Buttons.R = buttons&message.ButtonR != 0
		r.gcDev.Input.Buttons.L = buttons&message.ButtonL != 0
		r.gcDev.Input.StickX = message.StickX(msg)
		r.gcDev.Input.StickY = message.StickY(msg)
		r.gcDev.Input.SubstickX = message.SubstickX(msg)
		r.gcDev.Input.SubstickY = message.SubstickY(msg)
		r.gcDev.Input.TriggerLeft = message.TriggerLeft(msg)
		r.gcDev.Input.TriggerRight = message.TriggerRight(msg)
		r.gcDev.SetInputValid(true)
	}
}

func (r *Receiver) applyOrigin(msg packet.Message) {
	stickX := message.OriginStickX(msg)
	stickY := message.OriginStickY(msg)
	substickX := message.OriginSubstickX(msg)
	substickY := message.OriginSubstickY(msg)
	triggerL := message.OriginTriggerLeft(msg)
	triggerR := message.OriginTriggerRight(msg)

	if r.Settings.ControllerType == ControllerN64 {
		r.n64OriginX, r.n64OriginY = stickX, stickY
		return
	}

	changed := r.gcDev.Origin.StickX != stickX ||
		r.gcDev.Origin.StickY != stickY ||
		r.gcDev.Origin.SubstickX != substickX ||
		r.gcDev.Origin.SubstickY != substickY ||
		r.gcDev.Origin.TriggerLeft != triggerL ||
		r.gcDev.Origin.TriggerRight != triggerR

	if !changed {
		return
	}

	r.gcDev.Origin.StickX = stickX
	r.gcDev.Origin.StickY = stickY
	r.gcDev.Origin.SubstickX = substickX
	r.gcDev.Origin.SubstickY = substickY
	r.gcDev.Origin.TriggerLeft = triggerL
	r.gcDev.Origin.TriggerRight = triggerR
	r.gcDev.Input.Buttons.NeedOrigin = true
}

// HandleRadioError records a radio-level decode/transfer error reported by
// the PHY.
func (r *Receiver) HandleRadioError(err error) {
	r.Stats.RadioErrors++
}

// PairingStarted suspends SI command handling for the duration of pairing.
func (r *Receiver) PairingStarted() {
	r.pairingActive = true
	r.enableSICommandHandling = false
}

// PairingFinished ends pairing. On success it commits the new channel to
// Settings and reinitializes the controller; SI command handling then
// resumes at once for a WaveBird receiver, and for the other controller
// types with the next input-state packet. On timeout or cancellation SI
// command handling resumes at once.
func (r *Receiver) PairingFinished(status pairing.FinishStatus, channel uint8) {
	r.pairingActive = false

	switch status {
	case pairing.FinishSuccess:
		r.Settings.Channel = channel
		r.InitializeController()
	default:
		r.enableSICommandHandling = true
	}
}

// QualifyPacket decodes a raw packet and reports whether its buttons match
// the configured pairing key combination, for use as a pairing.QualifyFunc.
func (r *Receiver) QualifyPacket(raw []byte) bool {
	var p packet.Packet
	copy(p[:], raw)

	msg, err := packet.Decode(&p, r.crcFn)
	if err != nil || message.GetType(msg) != message.TypeInputState {
		return false
	}

	buttons := message.GetButtons(msg)
	return buttons&r.Settings.PairButtons == r.Settings.PairButtons
}

// Tick runs the receiver's periodic housekeeping: driving the SI engine
// (if enabled) and invalidating stale GC input.
func (r *Receiver) Tick() {
	if r.enableSICommandHandling {
		r.engine.Process()
	}

	if r.Settings.ControllerType != ControllerN64 && r.gcDev.InputValid && r.now().After(r.inputValidUntil) {
		r.gcDev.SetInputValid(false)
	}
}

// GC returns the underlying GameCube device state, or nil if this
// receiver is configured for an N64 controller.
func (r *Receiver) GC() *gc.Controller { return r.gcDev }

// N64 returns the underlying N64 device state, or nil if this receiver is
// configured for a GameCube controller.
func (r *Receiver) N64() *n64.Controller { return r.n64Dev }

// StatsSummary renders a short diagnostic summary, e.g. for a status line.
func (r *Receiver) StatsSummary() string {
	return fmt.Sprintf("packets=%d decode_errors=%d radio_errors=%d", r.Stats.Packets, r.Stats.DecodeErrors, r.Stats.RadioErrors)
}
