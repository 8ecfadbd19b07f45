// Command genserver runs the generator control server on the Pi wired
// to the MOD-IO board. It owns the relays: they are forced off at
// startup and again on the way down, whatever the reason.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pigenny/pigenny/internal/modio"
	"github.com/pigenny/pigenny/internal/sequence"
	"github.com/pigenny/pigenny/internal/server"
)

func main() {
	host := flag.String("host", "0.0.0.0", "Listen address")
	port := flag.Int("port", server.DefaultPort, "Listen port")
	i2cBus := flag.String("i2c-bus", "1", "I2C bus name or number")
	simulate := flag.Bool("simulate", false, "Run without hardware (fake relay board)")

	flag.Parse()

	if err := run(*host, *port, *i2cBus, *simulate); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(host string, port int, i2cBus string, simulate bool) error {
	bus, simulated := openBus(i2cBus, simulate)
	defer bus.Close()

	engine := sequence.New(bus)

	// Last line of defense: never exit with relays energized.
	defer func() {
		log.Print("emergency relay shutdown")
		engine.AllOff()
	}()

	srv := server.New(engine, simulated)
	addr := fmt.Sprintf("%s:%d", host, port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		return nil
	}
}

// openBus opens the real MOD-IO bus, falling back to the simulated one
// when asked to or when the hardware is absent. A dev machine without
// an I2C adapter still gets a working server for protocol testing.
func openBus(name string, simulate bool) (modio.Bus, bool) {
	if simulate {
		log.Print("simulated relay board (--simulate)")
		return modio.NewFakeBus(), true
	}
	bus, err := modio.NewRealBus(name)
	if err != nil {
		log.Printf("I2C unavailable (%v), falling back to simulated relay board", err)
		return modio.NewFakeBus(), true
	}
	log.Printf("MOD-IO on I2C bus %s at 0x%02X", name, modio.DeviceAddr)
	return bus, false
}
