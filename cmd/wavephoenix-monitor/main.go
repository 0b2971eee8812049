// wavephoenix-monitor is a gocui status dashboard for a receiver: packet,
// decode-error, and radio-error counters, the current channel, pairing
// state, and the bound wireless ID, updated once a second. It drives the
// receiver against a software test radio by default (no real PHY hardware
// is required to watch it run); -device is reserved for wiring in a real
// SI/radio backend later.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jroimartin/gocui"

	"github.com/loopj/wavephoenix/internal/pairing"
	"github.com/loopj/wavephoenix/internal/radio"
	"github.com/loopj/wavephoenix/internal/receiver"
	"github.com/loopj/wavephoenix/internal/settings"
	"github.com/loopj/wavephoenix/internal/si"
	"github.com/loopj/wavephoenix/internal/siphy"
)

type context struct {
	rcv     *receiver.Receiver
	radioFn *radio.Fake
	pairer  *pairing.Machine
}

func (ctx *context) update(g *gocui.Gui) error {
	v, err := g.View("status")
	if err != nil {
		return err
	}
	v.Clear()

	fmt.Fprintf(v, " channel: %-2d  controller: %v  pairing: %v\n",
		ctx.rcv.Settings.Channel, ctx.rcv.Settings.ControllerType, ctx.pairer.State())
	fmt.Fprintf(v, " %s\n", ctx.rcv.StatsSummary())

	if gc := ctx.rcv.GC(); gc != nil {
		fmt.Fprintf(v, " wireless_id: 0x%03X  fixed: %v  input_valid: %v\n",
			gc.WirelessID(), gc.WirelessIDFixed(), gc.InputValid)
	}

	fmt.Fprintf(v, " updated: %s\n", time.Now().Format("15:04:05"))
	return nil
}

func main() {
	devicePath := flag.String("device", "", "SI PHY device path (defaults to a software test radio)")
	flag.Parse()

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		log.Panicln(err)
	}

	cfg, err := settings.Load("wavephoenix.settings")
	if err != nil {
		log.Panicln(err)
	}

	sp := &siphy.Loopback{}
	engine := si.NewEngine(sp)
	rcv := receiver.New(engine, cfg, nil)

	var phy radio.PHY
	if *devicePath == "" {
		phy = radio.NewFake()
	} else {
		log.Printf("a real -device radio backend is not implemented; falling back to the software test radio")
		phy = radio.NewFake()
	}
	phy.SetChannel(rcv.Settings.Channel)

	pairer := pairing.New(phy, func() int64 { return time.Now().UnixMicro() })
	pairer.QualifyFn = rcv.QualifyPacket
	pairer.Started = rcv.PairingStarted
	pairer.Finished = func(status pairing.FinishStatus, channel uint8) {
		rcv.PairingFinished(status, channel)
		settings.Save("wavephoenix.settings", rcv.Settings)
	}
	pairer.Packet = func(p []byte) {
		if err := rcv.HandlePacket(p); err != nil {
			log.Printf("decode error: %v", err)
		}
	}
	pairer.Error = rcv.HandleRadioError

	phy.SetCallbacks(pairer.Packet, pairer.Error)

	ctx := &context{rcv: rcv, pairer: pairer}
	if fake, ok := phy.(*radio.Fake); ok {
		ctx.radioFn = fake
	}

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			phy.Process()
			pairer.Tick()
			if pairer.State() == pairing.StateIdle {
				rcv.Tick()
			}
		}
	}()

	go func() {
		for range time.Tick(time.Second) {
			g.Update(ctx.update)
		}
	}()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
}

func layout(g *gocui.Gui) error {
	const maxX = 80
	_, maxY := g.Size()

	v, err := g.SetView("status", 0, 0, maxX-2, maxY-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Title = " WAVEPHOENIX "
	fmt.Fprintln(v, " starting up...")
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
