// wavephoenix-headless runs a receiver with no UI, driven entirely by a
// software test radio, until interrupted — the signal-driven counterpart to
// wavephoenix-monitor, modeled on go1090's example/main.go.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loopj/wavephoenix/internal/pairing"
	"github.com/loopj/wavephoenix/internal/radio"
	"github.com/loopj/wavephoenix/internal/receiver"
	"github.com/loopj/wavephoenix/internal/settings"
	"github.com/loopj/wavephoenix/internal/si"
	"github.com/loopj/wavephoenix/internal/siphy"
)

func main() {
	settingsPath := flag.String("settings", "wavephoenix.settings", "path to the persistent settings file")
	devicePath := flag.String("device", "", "SI PHY device path (defaults to a software test radio)")
	flag.Parse()

	cfg, err := settings.Load(*settingsPath)
	if err != nil {
		log.Fatalf("settings: %v", err)
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
	if err := phy.SetChannel(rcv.Settings.Channel); err != nil {
		log.Fatalf("radio: %v", err)
	}

	pairer := pairing.New(phy, func() int64 { return time.Now().UnixMicro() })
	pairer.QualifyFn = rcv.QualifyPacket
	pairer.Started = rcv.PairingStarted
	pairer.Finished = func(status pairing.FinishStatus, channel uint8) {
		rcv.PairingFinished(status, channel)
		if err := settings.Save(*settingsPath, rcv.Settings); err != nil {
			log.Printf("settings: %v", err)
		}
		switch status {
		case pairing.FinishSuccess:
			log.Printf("pairing succeeded on channel %d", channel)
		case pairing.FinishTimeout:
			log.Printf("pairing timed out")
		case pairing.FinishCancelled:
			log.Printf("pairing cancelled")
		}
	}
	pairer.Packet = func(p []byte) {
		if err := rcv.HandlePacket(p); err != nil {
			log.Printf("decode error: %v", err)
		}
	}
	pairer.Error = rcv.HandleRadioError

	phy.SetCallbacks(pairer.Packet, pairer.Error)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan bool, 1)
	go func() {
		sig := <-sigs
		fmt.Println()
		log.Println(sig)
		done <- true
	}()

	log.Printf("wavephoenix-headless: channel=%d controller=%v", rcv.Settings.Channel, rcv.Settings.ControllerType)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	statusEvery := time.NewTicker(5 * time.Second)
	defer statusEvery.Stop()

loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			phy.Process()
			pairer.Tick()
			if pairer.State() == pairing.StateIdle {
				rcv.Tick()
			}
		case <-statusEvery.C:
			log.Println(rcv.StatsSummary())
		}
	}

	log.Println("exiting")
}
