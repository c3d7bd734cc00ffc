// cmd/deye-cli/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/config"
	"github.com/tamzrod/deye-bridge/internal/poller"
	"github.com/tamzrod/deye-bridge/internal/registers"
)

const usage = `usage:
  deye-cli [-config path] r <addr>          read one register
  deye-cli [-config path] w <addr> <value>  write one register`

// registerClient is the subset of the inverter client the CLI needs.
type registerClient interface {
	ReadRegisters(ctx context.Context, first, last uint16) (registers.Map, error)
	WriteRegister(ctx context.Context, addr, value uint16) error
}

var errUsage = errors.New(usage)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (environment overrides apply)")
	verbose := flag.Bool("v", false, "log frames")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

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

	if err := run(context.Background(), flag.Args(), client, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, c registerClient, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "r":
		if len(args) != 2 {
			return errUsage
		}
		addr, err := parseUint16(args[1])
		if err != nil {
			return err
		}

		regs, err := c.ReadRegisters(ctx, addr, addr)
		if err != nil {
			fmt.Fprintln(out, "Error")
			return err
		}
		v, ok := regs[addr]
		if !ok {
			fmt.Fprintln(out, "Error")
			return fmt.Errorf("register 0x%x missing from reply", addr)
		}
		fmt.Fprintf(out, "int: %d, l: %d, h: %d\n", v.Uint16(), v.Low(), v.High())
		return nil

	case "w":
		if len(args) != 3 {
			return errUsage
		}
		addr, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		value, err := parseUint16(args[2])
		if err != nil {
			return err
		}

		if err := c.WriteRegister(ctx, addr, value); err != nil {
			fmt.Fprintln(out, "Error")
			return err
		}
		fmt.Fprintln(out, "Ok")
		return nil
	}

	return errUsage
}

// parseUint16 accepts decimal or 0x-prefixed hex.
func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w\ninvalid number %q", errUsage, s)
	}
	return uint16(v), nil
}
