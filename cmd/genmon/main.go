// Command genmon supervises the generator: it polls battery state of
// charge from the inverter and starts or stops the generator through
// the genserver protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/pigenny/pigenny/internal/client"
	"github.com/pigenny/pigenny/internal/inverter"
	"github.com/pigenny/pigenny/internal/mqtt"
	"github.com/pigenny/pigenny/internal/status"
	"github.com/pigenny/pigenny/internal/supervisor"
	"github.com/pigenny/pigenny/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (flags override it)")
	generator := flag.String("generator", "", "Generator server address (host:port)")
	inverterPort := flag.String("inverter-port", "", "Inverter serial device")
	socStart := flag.Int("soc-start", -1, "Start generator below this SOC percent")
	socStop := flag.Int("soc-stop", -1, "Stop generator at or above this SOC percent")
	poll := flag.Duration("poll", 0, "Poll interval")
	broker := flag.String("broker", "", `MQTT broker URL ("off" disables)`)
	httpAddr := flag.String("http", "", `HTTP status address ("off" disables)`)
	testInverter := flag.Bool("test-inverter", false, "Read telemetry once and exit")
	testGenerator := flag.Bool("test-generator", false, "Query the generator server once and exit")

	flag.Parse()

	cfg, err := buildConfig(*configPath, *generator, *inverterPort, *socStart, *socStop, *poll, *broker, *httpAddr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	switch {
	case *testInverter:
		err = runTestInverter(cfg)
	case *testGenerator:
		err = runTestGenerator(cfg)
	default:
		err = run(cfg, *broker == "off", *httpAddr == "off")
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// buildConfig layers file config over defaults and set flags over both.
func buildConfig(path, generator, inverterPort string, socStart, socStop int, poll time.Duration, broker, httpAddr string) (supervisor.Config, error) {
	cfg := supervisor.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = supervisor.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if generator != "" {
		cfg.GeneratorAddr = generator
	}
	if inverterPort != "" {
		cfg.InverterPort = inverterPort
	}
	if socStart >= 0 {
		cfg.StartSOC = socStart
	}
	if socStop >= 0 {
		cfg.StopSOC = socStop
	}
	if poll > 0 {
		cfg.PollInterval = poll
	}
	if broker != "" && broker != "off" {
		cfg.Broker = broker
	}
	if httpAddr != "" && httpAddr != "off" {
		cfg.HTTPAddr = httpAddr
	}
	if cfg.StartSOC >= cfg.StopSOC {
		return cfg, fmt.Errorf("soc-start (%d) must be below soc-stop (%d)", cfg.StartSOC, cfg.StopSOC)
	}
	return cfg, nil
}

func run(cfg supervisor.Config, noBroker, noHTTP bool) error {
	inv, err := inverter.Open(cfg.InverterPort, cfg.InverterUnit)
	if err != nil {
		return fmt.Errorf("open inverter: %w", err)
	}
	defer inv.Close()

	c := client.New(cfg.GeneratorAddr, 0)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect generator: %w", err)
	}
	defer c.Disconnect()

	gen := &supervisor.RemoteGenerator{
		Client:           c,
		DebounceChecks:   cfg.DebounceChecks,
		DebounceInterval: cfg.DebounceInterval,
	}
	ovr := &supervisor.FileOverrides{
		ChargePath: cfg.ForceChargePath,
		StopPath:   cfg.ForceStopPath,
	}

	var pub mqtt.Publisher
	if !noBroker {
		p, err := mqtt.Connect(cfg.Broker, "genmon")
		if err != nil {
			// The publisher buffers and retries; only a malformed URL
			// lands here.
			return fmt.Errorf("mqtt: %w", err)
		}
		defer p.Close()
		pub = p
	}

	var tracker *status.Tracker
	if !noHTTP {
		tracker = status.NewTracker(status.Config{
			GeneratorAddr: cfg.GeneratorAddr,
			StartSOC:      cfg.StartSOC,
			StopSOC:       cfg.StopSOC,
			PollInterval:  cfg.PollInterval,
			MaxRuntime:    cfg.MaxRuntime,
		})
		ws := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := ws.ListenAndServe(); err != nil {
				log.Printf("status page: %v", err)
			}
		}()
	}

	machine := supervisor.NewMachine(cfg, gen, ovr)
	runner := supervisor.NewRunner(cfg, machine, inv, gen, pub, tracker)

	log.Printf("supervising %s: start <%d%%, stop >=%d%%, poll %v",
		cfg.GeneratorAddr, cfg.StartSOC, cfg.StopSOC, cfg.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Print("shutting down")
	return nil
}

func runTestInverter(cfg supervisor.Config) error {
	inv, err := inverter.Open(cfg.InverterPort, cfg.InverterUnit)
	if err != nil {
		return fmt.Errorf("open inverter: %w", err)
	}
	defer inv.Close()

	tel, err := inv.Read()
	if err != nil {
		return fmt.Errorf("read telemetry: %w", err)
	}
	fmt.Println(tel)
	return nil
}

func runTestGenerator(cfg supervisor.Config) error {
	c := client.New(cfg.GeneratorAddr, 10*time.Second)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect generator: %w", err)
	}
	defer c.Disconnect()

	pong, err := c.Ping()
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Println(pong)

	report, err := c.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Println(report)
	return nil
}
