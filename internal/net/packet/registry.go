package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the connection's current protocol phase.
type SessionState int

const (
	StateFresh         SessionState = iota // connected, nothing proven
	StateAuthenticated                     // hello accepted, at character select
	StateInWorld                           // playing
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateAuthenticated:
		return "Authenticated"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ErrUnknownOpcode is returned by Dispatch for opcodes with no handler.
// Not fatal: the session counts strikes and only disconnects on abuse.
var ErrUnknownOpcode = errors.New("unknown opcode")

// ErrBadState is returned when a known opcode arrives in a phase where it
// is not allowed. Always fatal for the session.
var ErrBadState = errors.New("opcode not allowed in session state")

// HandlerFunc is the callback signature for packet handlers. The session
// pointer is passed as an opaque interface to avoid import cycles between
// the protocol layer and the game layer.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control. It is
// populated once at startup, before the acceptors run, and read-only after
// that, so dispatch needs no locking.
type Registry struct {
	handlers map[Opcode]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[Opcode]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session
// states.
func (reg *Registry) Register(opcode Opcode, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{fn: fn, allowedStates: allowed}
}

// Lookup reports whether a handler is bound for the opcode.
func (reg *Registry) Lookup(opcode Opcode) bool {
	_, ok := reg.handlers[opcode]
	return ok
}

// Dispatch finds the handler for the frame's opcode, validates the session
// state, and calls the handler. Unknown opcodes return ErrUnknownOpcode so
// the session can count strikes without tearing down.
func (reg *Registry) Dispatch(sess any, state SessionState, opcode Opcode, payload []byte) error {
	reg.log.Debug("RX",
		zap.Stringer("opcode", opcode),
		zap.Int("size", len(payload)),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[opcode]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOpcode, opcode)
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("opcode rejected for state",
			zap.Stringer("opcode", opcode),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%w: %s in %s", ErrBadState, opcode, state)
	}

	return reg.safeCall(entry.fn, sess, NewReader(payload), opcode)
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot take the connection goroutine down with a stack trace.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode Opcode) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", opcode, rec)
		}
	}()
	fn(sess, r)
	return nil
}
