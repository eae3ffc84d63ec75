package net

import (
	"errors"
	stdnet "net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/metrics"
	"github.com/nexusgo/server/internal/net/packet"
)

// Connection is one TCP client, driven by two goroutines: readLoop
// decodes and dispatches inbound frames, writeLoop drains the outbound
// queue. SendPacket and Disconnect are safe from any goroutine, which is
// what lets a Connection serve as the session's world.Sender.
type Connection struct {
	ID   uint64
	conn stdnet.Conn
	log  *zap.Logger
	reg  *packet.Registry
	cfg  config.NetworkConfig
	rate config.RateLimitConfig

	// Attach carries the handler layer's per-client state. Written by the
	// readLoop goroutine (handlers run there); the protocol layer never
	// looks inside.
	Attach any

	mu         sync.Mutex
	state      packet.SessionState
	sendCipher *Cipher
	closed     bool

	// recvCipher is readLoop-only.
	recvCipher *Cipher

	outCh     chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	onClose   func(c *Connection, reason string)

	// Unknown-opcode strikes and the packet rate window. readLoop-only.
	strikes      int
	strikeWindow time.Time
	rateCount    int
	rateWindow   time.Time
}

func newConnection(id uint64, conn stdnet.Conn, reg *packet.Registry, cfg config.NetworkConfig, rate config.RateLimitConfig, onClose func(*Connection, string), log *zap.Logger) *Connection {
	return &Connection{
		ID:      id,
		conn:    conn,
		log:     log.With(zap.Uint64("conn", id), zap.String("remote", conn.RemoteAddr().String())),
		reg:     reg,
		cfg:     cfg,
		rate:    rate,
		state:   packet.StateFresh,
		outCh:   make(chan []byte, cfg.OutQueueSize),
		closeCh: make(chan struct{}),
		onClose: onClose,
	}
}

// State returns the connection's protocol phase.
func (c *Connection) State() packet.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState advances the protocol phase.
func (c *Connection) SetState(s packet.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RemoteAddr reports the peer address.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// EnableEncryption arms both directions with the session key. Frames
// already queued stay plaintext because encryption happens at enqueue
// time; everything sent after this call rides the keystream.
func (c *Connection) EnableEncryption(sessionKey [SessionKeyLen]byte) {
	c.mu.Lock()
	c.sendCipher = NewCipher(sessionKey)
	c.mu.Unlock()
	c.recvCipher = NewCipher(sessionKey)
}

// SendPacket frames, encrypts and queues one outbound packet. A full
// queue means the client has stopped draining its socket; the connection
// is cut rather than letting one slow client grow unbounded buffers.
func (c *Connection) SendPacket(opcode uint16, payload []byte) {
	frame := EncodeFrame(opcode, payload)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.sendCipher != nil {
		frame = c.sendCipher.Apply(frame)
	}
	// Enqueue under the same lock that advanced the keystream: queue order
	// must match cipher order or the peer decrypts garbage. The buffered
	// send with default never blocks, so holding the mutex here is safe.
	var full bool
	select {
	case c.outCh <- frame:
	default:
		full = true
	}
	c.mu.Unlock()

	if full {
		c.Disconnect("send queue full")
	}
}

// Disconnect tears the connection down once; subsequent calls are no-ops.
func (c *Connection) Disconnect(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.state = packet.StateDisconnecting
		c.mu.Unlock()

		metrics.Disconnects.WithLabelValues(reason).Inc()
		c.log.Info("disconnect", zap.String("reason", reason))
		close(c.closeCh)
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c, reason)
		}
	})
}

// run starts both pump goroutines and blocks until the reader exits.
func (c *Connection) run() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Connection) readLoop() {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		if c.cfg.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		n, err := c.conn.Read(chunk)
		if err != nil {
			c.Disconnect("read: " + err.Error())
			return
		}
		data := chunk[:n]
		if c.recvCipher != nil {
			data = c.recvCipher.Apply(data)
		}
		buf = append(buf, data...)

		frames, rest, err := DecodeFrames(buf, c.cfg.MaxFrameSize)
		if err != nil {
			c.Disconnect("frame: " + err.Error())
			return
		}
		for _, f := range frames {
			if !c.admitPacket() {
				c.Disconnect("packet rate exceeded")
				return
			}
			if !c.dispatch(f) {
				return
			}
		}
		// Payloads alias buf; handlers are done with them by now.
		buf = append(buf[:0], rest...)
	}
}

// dispatch routes one frame. Returns false when the connection must die.
func (c *Connection) dispatch(f Frame) bool {
	op, _ := packet.FromUint16(f.Opcode)
	err := c.reg.Dispatch(c, c.State(), op, f.Payload)
	switch {
	case err == nil:
		return true
	case errors.Is(err, packet.ErrUnknownOpcode):
		metrics.UnknownOpcodes.Inc()
		if c.addStrike() {
			c.Disconnect("unknown opcode flood")
			return false
		}
		return true
	default:
		c.Disconnect("dispatch: " + err.Error())
		return false
	}
}

// addStrike counts unknown opcodes in a rolling minute. Returns true when
// the client crossed the disconnect threshold.
func (c *Connection) addStrike() bool {
	if c.rate.UnknownPerMinute <= 0 {
		return false
	}
	now := time.Now()
	if now.Sub(c.strikeWindow) > time.Minute {
		c.strikeWindow = now
		c.strikes = 0
	}
	c.strikes++
	return c.strikes > c.rate.UnknownPerMinute
}

// admitPacket enforces the per-second inbound packet budget.
func (c *Connection) admitPacket() bool {
	if !c.rate.Enabled || c.rate.PacketsPerSecond <= 0 {
		return true
	}
	now := time.Now()
	if now.Sub(c.rateWindow) > time.Second {
		c.rateWindow = now
		c.rateCount = 0
	}
	c.rateCount++
	return c.rateCount <= c.rate.PacketsPerSecond
}

func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case frame := <-c.outCh:
			if c.cfg.WriteTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if _, err := c.conn.Write(frame); err != nil {
				c.Disconnect("write: " + err.Error())
				return
			}
		}
	}
}
