// Package gpio implements the status LED, pair button, and channel-wheel
// glue a complete receiver binary needs around internal/receiver's core,
// built on periph.io the way seedhammer's input driver reads its button
// GPIOs. The blink-effect and button-debounce semantics are ported from
// original_source/firmware/receiver/src/led.c and button.c.
package gpio

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// RepeatForever marks a blink effect that never stops on its own, matching
// led.h's LED_REPEAT_FOREVER.
const RepeatForever = -1

type ledEffect int

const (
	effectNone ledEffect = iota
	effectBlink
)

// LED drives a single GPIO output pin through blink effects, polled by
// Update the way the reference firmware's main loop calls
// led_effect_update every tick instead of using a hardware PWM/timer.
type LED struct {
	pin      gpio.PinOut
	inverted bool

	effect    ledEffect
	period    time.Duration
	repeat    int
	iteration int
	startTime time.Time
}

// NewLED wraps pin, setting its initial state to off.
func NewLED(pin gpio.PinOut, inverted bool) (*LED, error) {
	l := &LED{pin: pin, inverted: inverted}
	if err := l.setRaw(false); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LED) setRaw(on bool) error {
	if l.inverted {
		on = !on
	}
	if on {
		return l.pin.Out(gpio.High)
	}
	return l.pin.Out(gpio.Low)
}

// Set turns the LED on or off directly, cancelling any running effect.
func (l *LED) Set(on bool) error {
	l.effect = effectNone
	return l.setRaw(on)
}

// EffectNone cancels any running effect without changing the LED's current
// state.
func (l *LED) EffectNone() {
	l.effect = effectNone
}

// EffectBlink starts a square-wave blink: on for period, then off for
// period, so one on/off cycle lasts twice the period. The cycle repeats
// repeat times, or forever if repeat is RepeatForever.
func (l *LED) EffectBlink(period time.Duration, repeat int) {
	l.effect = effectBlink
	l.period = period
	l.repeat = repeat
	l.iteration = 0
	l.startTime = time.Time{}
}

// Update advances the current effect against now. It must be called
// periodically (the receiver's tick) for blink effects to progress.
func (l *LED) Update(now time.Time) error {
	if l.effect != effectBlink {
		return nil
	}

	if l.startTime.IsZero() {
		l.startTime = now
	}

	elapsed := now.Sub(l.startTime)
	cycle := l.period * 2

	if err := l.setRaw(elapsed%cycle < l.period); err != nil {
		return err
	}

	if elapsed >= cycle {
		l.iteration++
		if l.repeat != RepeatForever && l.iteration >= l.repeat {
			return l.Set(false)
		}
		l.startTime = now
	}

	return nil
}

// Button debounce/long-press timing, matching button.c's constants.
const (
	DebounceWindow  = 50 * time.Millisecond
	LongPressWindow = 2000 * time.Millisecond
)

// PressFunc is invoked on a debounced button press.
type PressFunc func()

// LongPressFunc is invoked if a button remains held past LongPressWindow.
type LongPressFunc func()

// Button reports debounced press/long-press events from a single active-low
// input pin, via a background goroutine using WaitForEdge, the same shape
// seedhammer's input driver uses for its joystick buttons.
type Button struct {
	pin gpio.PinIn

	OnPress     PressFunc
	OnLongPress LongPressFunc

	stop chan struct{}
}

// OpenButton configures pin as a pulled-up, edge-triggered input and starts
// its debounce goroutine.
func OpenButton(pin gpio.PinIn) (*Button, error) {
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, err
	}

	b := &Button{pin: pin, stop: make(chan struct{})}
	go b.run()
	return b, nil
}

// Close stops the button's background goroutine.
func (b *Button) Close() {
	close(b.stop)
}

func (b *Button) run() {
	pressed := false
	for {
		select {
		case <-b.stop:
			return
		default:
		}

		if !b.pin.WaitForEdge(-1) {
			continue
		}

		now := b.pin.Read() == gpio.Low
		if now == pressed {
			continue
		}

		// Debounce: require the new level to still hold after the
		// debounce window before treating it as a real transition.
		time.Sleep(DebounceWindow)
		if (b.pin.Read() == gpio.Low) != now {
			continue
		}

		pressed = now
		if !pressed {
			continue
		}

		if b.OnPress != nil {
			b.OnPress()
		}

		longPressDeadline := time.NewTimer(LongPressWindow - DebounceWindow)
		released := make(chan struct{})
		go func() {
			b.pin.WaitForEdge(-1)
			close(released)
		}()

		select {
		case <-longPressDeadline.C:
			if b.OnLongPress != nil {
				b.OnLongPress()
			}
			<-released
			pressed = false
		case <-released:
			longPressDeadline.Stop()
			pressed = false
		}
	}
}

// ChannelWheel reads a 4-bit active-low rotary selector (0-15) wired across
// four GPIO input pins, matching channel_wheel.c's bit layout.
type ChannelWheel struct {
	bits [4]gpio.PinIn

	// OnChange is invoked with the new value whenever any bit pin edges.
	OnChange func(value uint8)

	stop chan struct{}
}

// OpenChannelWheel configures bits[0..3] as pulled-up inputs (bit0 is the
// least significant) and starts a background goroutine that calls OnChange
// whenever the selector position changes.
func OpenChannelWheel(bits [4]gpio.PinIn) (*ChannelWheel, error) {
	for _, pin := range bits {
		if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, err
		}
	}

	w := &ChannelWheel{bits: bits, stop: make(chan struct{})}
	go w.run()
	return w, nil
}

// Close stops the channel wheel's background goroutine.
func (w *ChannelWheel) Close() {
	close(w.stop)
}

// Value reads the selector's current 4-bit position.
func (w *ChannelWheel) Value() uint8 {
	var value uint8
	for i, pin := range w.bits {
		if pin.Read() == gpio.Low {
			value |= 1 << uint(i)
		}
	}
	return value
}

// run watches all four bit pins, one goroutine per pin (mirroring
// seedhammer's one-goroutine-per-button input driver), each waking the
// shared edge channel whenever its own pin toggles.
func (w *ChannelWheel) run() {
	edge := make(chan struct{}, 4)
	for _, pin := range w.bits {
		pin := pin
		go func() {
			for {
				select {
				case <-w.stop:
					return
				default:
				}
				if pin.WaitForEdge(100 * time.Millisecond) {
					select {
					case edge <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	prev := w.Value()
	for {
		select {
		case <-w.stop:
			return
		case <-edge:
			if value := w.Value(); value != prev {
				prev = value
				if w.OnChange != nil {
					w.OnChange(value)
				}
			}
		}
	}
}
