package eufy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// maxSequence bounds the random keep-alive sequence, exclusive.
const maxSequence = 3_000_000

// Reconnector re-establishes the link before a retry. It must fail once
// the link was deliberately closed. *ConnectionManager satisfies it.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// ExchangeStats holds exchange counters.
type ExchangeStats struct {
	Exchanges         uint64        `json:"exchanges"`
	Retries           uint64        `json:"retries"`
	Failures          uint64        `json:"failures"`
	KeepAlives        uint64        `json:"keep_alives"`
	KeepAliveFailures uint64        `json:"keep_alive_failures"`
	LastSequence      uint32        `json:"last_sequence"`
	LastRTT           time.Duration `json:"last_rtt"`
}

// ExchangeEngine encodes, encrypts and exchanges packets with one device.
//
// Every write holds a per-connection lock, so keep-alive exchanges never
// interleave with foreground ones. A transport failure triggers one
// reconnect and one resend; a second failure is returned as ErrSend or
// ErrExchange.
type ExchangeEngine struct {
	transport Transport
	cipher    Cipher
	codec     Codec
	reconnect Reconnector
	model     device.Model
	schema    device.Schema
	code      string

	// mu serialises exchanges on the connection.
	mu sync.Mutex

	exchanges         atomic.Uint64
	retries           atomic.Uint64
	failures          atomic.Uint64
	keepAlives        atomic.Uint64
	keepAliveFailures atomic.Uint64
	lastSequence      atomic.Uint32
	lastRTT           atomic.Int64

	// sequence is replaceable in tests.
	sequence func() uint32

	log logHolder
}

// ExchangeConfig wires an engine to its collaborators.
type ExchangeConfig struct {
	Transport   Transport
	Cipher      Cipher
	Codec       Codec
	Reconnector Reconnector
	Model       device.Model
	Code        string
}

// NewExchangeEngine creates an engine. The model selects the response
// schema for state exchanges.
func NewExchangeEngine(cfg ExchangeConfig) *ExchangeEngine {
	return &ExchangeEngine{
		transport: cfg.Transport,
		cipher:    cfg.Cipher,
		codec:     cfg.Codec,
		reconnect: cfg.Reconnector,
		model:     cfg.Model,
		schema:    device.SchemaOf(cfg.Model),
		code:      cfg.Code,
		sequence:  func() uint32 { return rand.Uint32N(maxSequence) },
	}
}

// SetLogger sets the logger for exchange diagnostics.
func (e *ExchangeEngine) SetLogger(logger Logger) {
	e.log.set(logger)
}

// Send writes p without waiting for a reply.
func (e *ExchangeEngine) Send(ctx context.Context, p *Packet) error {
	data, err := e.encode(p)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.transport.Write(ctx, data)
	if err != nil && e.retry(ctx, "send", err) {
		err = e.transport.Write(ctx, data)
	}
	if err != nil {
		e.failures.Add(1)
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

// SendAndAwaitResponse exchanges p and decodes the reply with the model's
// response schema.
func (e *ExchangeEngine) SendAndAwaitResponse(ctx context.Context, p *Packet) (*Packet, error) {
	return e.exchange(ctx, p, e.schema)
}

// GetSequence runs one keep-alive round-trip and returns the next
// sequence value (reply sequence + 1).
//
// The reply is always decoded with the white bulb schema, whatever the
// device model.
func (e *ExchangeEngine) GetSequence(ctx context.Context) (uint32, error) {
	e.keepAlives.Add(1)
	start := time.Now()

	resp, err := e.exchange(ctx, newPingPacket(e.code, e.sequence()), device.SchemaWhiteBulb)
	if err != nil {
		e.keepAliveFailures.Add(1)
		return 0, err
	}

	next := resp.Sequence + 1
	e.lastSequence.Store(next)
	e.lastRTT.Store(int64(time.Since(start)))
	e.log.debug("eufy keep-alive", "model", e.model, "sequence", next)
	return next, nil
}

// ResetSequence forgets the last keep-alive sequence.
func (e *ExchangeEngine) ResetSequence() {
	e.lastSequence.Store(0)
}

// Stats returns a snapshot of the exchange counters.
func (e *ExchangeEngine) Stats() ExchangeStats {
	return ExchangeStats{
		Exchanges:         e.exchanges.Load(),
		Retries:           e.retries.Load(),
		Failures:          e.failures.Load(),
		KeepAlives:        e.keepAlives.Load(),
		KeepAliveFailures: e.keepAliveFailures.Load(),
		LastSequence:      e.lastSequence.Load(),
		LastRTT:           time.Duration(e.lastRTT.Load()),
	}
}

func (e *ExchangeEngine) exchange(ctx context.Context, p *Packet, schema device.Schema) (*Packet, error) {
	data, err := e.encode(p)
	if err != nil {
		return nil, err
	}

	reply, err := e.roundTrip(ctx, data)
	if err != nil {
		return nil, err
	}

	plain, err := e.cipher.Decrypt(reply)
	if err != nil {
		return nil, err
	}
	payload, err := ParseFrame(plain)
	if err != nil {
		return nil, err
	}
	return e.codec.Unmarshal(schema, payload)
}

// roundTrip writes data and reads the reply under the connection lock.
func (e *ExchangeEngine) roundTrip(ctx context.Context, data []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exchanges.Add(1)
	reply, err := e.transport.WriteAndAwaitReply(ctx, data)
	if err != nil && e.retry(ctx, "exchange", err) {
		reply, err = e.transport.WriteAndAwaitReply(ctx, data)
	}
	if err != nil {
		e.failures.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	return reply, nil
}

// retry reconnects after a failed attempt and reports whether the attempt
// should be repeated. Must be called with mu held.
func (e *ExchangeEngine) retry(ctx context.Context, op string, cause error) bool {
	e.log.warn("eufy "+op+" failed, reconnecting", "model", e.model, "error", cause)

	if ctx.Err() != nil {
		return false
	}
	if err := e.reconnect.Reconnect(ctx); err != nil {
		e.log.warn("eufy reconnect failed", "model", e.model, "error", err)
		return false
	}
	e.retries.Add(1)
	return true
}

// encode serialises and encrypts p with the model's schema.
func (e *ExchangeEngine) encode(p *Packet) ([]byte, error) {
	plain, err := e.codec.Marshal(e.schema, p)
	if err != nil {
		return nil, err
	}
	return e.cipher.Encrypt(plain)
}
