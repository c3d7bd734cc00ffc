// internal/inverter/client.go
package inverter

import (
	"context"
	"errors"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/solarman"
)

// Sender moves one request frame to the logger and returns its answer.
// transport.Client is the production implementation.
type Sender interface {
	Send(ctx context.Context, frame []byte) ([]byte, error)
}

// Config identifies the inverter behind the logger.
type Config struct {
	Identity solarman.Identity
	SlaveID  byte
}

// Client reads and writes holding registers through the logger.
// It holds no connection; every call is one request/response exchange.
type Client struct {
	cfg    Config
	sender Sender
	log    zerolog.Logger
}

// New creates a client. A zero SlaveID defaults to 1.
func New(cfg Config, sender Sender, log zerolog.Logger) *Client {
	if cfg.SlaveID == 0 {
		cfg.SlaveID = 1
	}
	return &Client{
		cfg:    cfg,
		sender: sender,
		log:    log.With().Str("component", "inverter").Logger(),
	}
}

// ReadRegisters reads registers first..last inclusive.
// On failure the map is empty and the error carries its fault kind.
func (c *Client) ReadRegisters(ctx context.Context, first, last uint16) (registers.Map, error) {
	req, err := registers.ReadRequest(c.cfg.SlaveID, first, last)
	if err != nil {
		return make(registers.Map), err
	}

	payload, err := c.exchange(ctx, req)
	if err != nil {
		c.logFailure(err, "read", first, last)
		return make(registers.Map), err
	}

	regs, err := registers.ParseReadResponse(payload, first, last)
	if err != nil {
		c.logFailure(err, "read", first, last)
		return regs, err
	}
	return regs, nil
}

// WriteRegister writes one holding register and checks the echo.
func (c *Client) WriteRegister(ctx context.Context, addr, value uint16) error {
	payload, err := c.exchange(ctx, registers.WriteRequest(c.cfg.SlaveID, addr, value))
	if err != nil {
		c.logFailure(err, "write", addr, addr)
		return err
	}

	if err := registers.VerifyWriteResponse(payload, addr); err != nil {
		c.logFailure(err, "write", addr, addr)
		return err
	}
	return nil
}

// ModbusClient exposes the logger as a goburrow modbus.Client.
// ctx bounds every request made through the returned client.
func (c *Client) ModbusClient(ctx context.Context) modbus.Client {
	p := &solarman.Packager{Identity: c.cfg.Identity, SlaveID: c.cfg.SlaveID}
	return modbus.NewClient2(p, &transporter{ctx: ctx, sender: c.sender})
}

// ---- internal ----

func (c *Client) exchange(ctx context.Context, inner []byte) ([]byte, error) {
	frame := solarman.BuildFrame(c.cfg.Identity, inner)
	c.log.Debug().Hex("frame", frame).Msg("request frame")

	resp, err := c.sender.Send(ctx, frame)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Hex("frame", resp).Msg("response frame")

	return solarman.UnwrapFrame(resp)
}

func (c *Client) logFailure(err error, op string, first, last uint16) {
	ev := c.log.Error().
		Err(err).
		Str("op", op).
		Str("kind", fault.Label(err)).
		Uint16("first", first).
		Uint16("last", last)

	var le *solarman.LoggerError
	if errors.As(err, &le) {
		ev = ev.Uint8("logger_code", le.Code)
	}
	ev.Msg("inverter request failed")
}

// transporter adapts a Sender to modbus.Transporter.
type transporter struct {
	ctx    context.Context
	sender Sender
}

func (t *transporter) Send(adu []byte) ([]byte, error) {
	return t.sender.Send(t.ctx, adu)
}
