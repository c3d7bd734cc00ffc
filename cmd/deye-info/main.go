// cmd/deye-info/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/config"
	"github.com/tamzrod/deye-bridge/internal/poller"
	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/sensor"
)

// holdingReader is the part of modbus.Client used here.
type holdingReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (environment overrides apply)")
	verbose := flag.Bool("v", false, "log frames")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.ValidateLogger(cfg.Logger); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	client, err := poller.BuildInverter(cfg.Logger, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inverter client")
	}

	if err := run(client.ModbusClient(context.Background()), os.Stdout); err != nil {
		log.Error().Err(err).Msg("device info")
		os.Exit(1)
	}
}

func run(c holdingReader, out io.Writer) error {
	regs := registers.Map{}
	for _, addr := range sensor.DeviceInfoRegisters {
		b, err := c.ReadHoldingRegisters(addr, 1)
		if err != nil {
			return fmt.Errorf("read register %d: %w", addr, err)
		}
		if len(b) != 2 {
			return fmt.Errorf("read register %d: got %d bytes", addr, len(b))
		}
		regs[addr] = registers.Value{b[0], b[1]}
	}

	info, err := sensor.DecodeDeviceInfo(regs)
	if err != nil {
		return err
	}
	for _, l := range info.Lines() {
		fmt.Fprintln(out, l)
	}
	return nil
}
