// Package handler binds wire opcodes to game logic. Each handler runs on
// its connection's read goroutine; anything touching zone state is posted
// into the zone mailbox instead of mutated in place.
package handler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/auth"
	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/metrics"
	gonet "github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/tick"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// Deps carries everything handlers need. Built once at boot, read-only
// afterwards.
type Deps struct {
	Log        *zap.Logger
	Cfg        *config.Config
	Manager    *world.Manager
	Zones      *zone.Registry
	Content    *data.Store
	Accounts   *persist.AccountRepo
	Characters *persist.CharacterRepo
	Clock      *tick.Clock
}

// ClientSession is the per-connection game state, stored in the
// connection's Attach slot. Fields are written only on the connection's
// read goroutine.
type ClientSession struct {
	Conn *gonet.Connection

	AccountID    uint64
	AccountEmail string
	SRP          *auth.ServerSession // in-flight auth handshake, nil otherwise

	CharacterID uint64
	EntityGUID  world.GUID
	Faction     world.PlayerFaction
	ZoneKey     world.ZoneKey
	InWorld     atomic.Bool
}

func sessionOf(raw any) *ClientSession {
	c := raw.(*gonet.Connection)
	return c.Attach.(*ClientSession)
}

// Attach wires a fresh ClientSession onto a new connection. Installed as
// the server's OnConnect hook.
func Attach(c *gonet.Connection) {
	c.Attach = &ClientSession{Conn: c}
}

// send builds and sends one packet on the session's connection.
func (s *ClientSession) send(op packet.Opcode, build func(w *packet.Writer)) {
	w := packet.NewWriter()
	if build != nil {
		build(w)
	}
	s.Conn.SendPacket(uint16(op), w.Bytes())
}

// reqCtx bounds one handler's database work.
func (d *Deps) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.Cfg.Game.RequestTimeout)
}

// RegisterAuth binds the handlers served on the auth listener.
func RegisterAuth(reg *packet.Registry, d *Deps) {
	reg.Register(packet.ClientHelloAuth,
		[]packet.SessionState{packet.StateFresh, packet.StateAuthenticated},
		func(sess any, r *packet.Reader) { d.handleHelloAuth(sessionOf(sess), r) })
}

// RegisterRealm binds the handlers served on the realm listener.
func RegisterRealm(reg *packet.Registry, d *Deps) {
	reg.Register(packet.ClientHelloRealm,
		[]packet.SessionState{packet.StateFresh},
		func(sess any, r *packet.Reader) { d.handleHelloRealm(sessionOf(sess), r) })
	reg.Register(packet.ClientRealmListRequest,
		[]packet.SessionState{packet.StateAuthenticated},
		func(sess any, r *packet.Reader) { d.handleRealmList(sessionOf(sess), r) })
	reg.Register(packet.ClientRealmSelect,
		[]packet.SessionState{packet.StateAuthenticated},
		func(sess any, r *packet.Reader) { d.handleRealmSelect(sessionOf(sess), r) })
}

// RegisterWorld binds the handlers served on the world listener.
func RegisterWorld(reg *packet.Registry, d *Deps) {
	fresh := []packet.SessionState{packet.StateFresh}
	authed := []packet.SessionState{packet.StateAuthenticated}
	inWorld := []packet.SessionState{packet.StateInWorld}
	anyState := []packet.SessionState{packet.StateFresh, packet.StateAuthenticated, packet.StateInWorld}

	reg.Register(packet.ClientHelloWorld, fresh,
		func(sess any, r *packet.Reader) { d.handleHelloWorld(sessionOf(sess), r) })

	reg.Register(packet.ClientCharacterList, authed,
		func(sess any, r *packet.Reader) { d.handleCharacterList(sessionOf(sess), r) })
	reg.Register(packet.ClientCharacterCreate, authed,
		func(sess any, r *packet.Reader) { d.handleCharacterCreate(sessionOf(sess), r) })
	reg.Register(packet.ClientCharacterDelete, authed,
		func(sess any, r *packet.Reader) { d.handleCharacterDelete(sessionOf(sess), r) })
	reg.Register(packet.ClientCharacterSelect, authed,
		func(sess any, r *packet.Reader) { d.handleCharacterSelect(sessionOf(sess), r) })
	reg.Register(packet.ClientEnteredWorld, authed,
		func(sess any, r *packet.Reader) { d.handleEnteredWorld(sessionOf(sess), r) })

	reg.Register(packet.ClientEntityCommand, inWorld,
		func(sess any, r *packet.Reader) { d.handleEntityCommand(sessionOf(sess), r) })
	reg.Register(packet.ClientChat, inWorld,
		func(sess any, r *packet.Reader) { d.handleChat(sessionOf(sess), r) })
	reg.Register(packet.ClientWhisper, inWorld,
		func(sess any, r *packet.Reader) { d.handleWhisper(sessionOf(sess), r) })
	reg.Register(packet.ClientCastSpell, inWorld,
		func(sess any, r *packet.Reader) { d.handleCastSpell(sessionOf(sess), r) })
	reg.Register(packet.ClientCancelCast, inWorld,
		func(sess any, r *packet.Reader) { d.handleCancelCast(sessionOf(sess), r) })
	reg.Register(packet.ClientNpcInteract, inWorld,
		func(sess any, r *packet.Reader) { d.handleNpcInteract(sessionOf(sess), r) })
	reg.Register(packet.ClientLootCorpse, inWorld,
		func(sess any, r *packet.Reader) { d.handleLootCorpse(sessionOf(sess), r) })

	reg.Register(packet.ClientKeepAlive, anyState, func(any, *packet.Reader) {})

	// Observed from the 16042 client without documented behavior; named
	// no-ops so they bypass the unknown-opcode strike counter.
	reg.Register(packet.ClientUnknown0269, anyState, func(any, *packet.Reader) {})
	reg.Register(packet.ClientUnknown07CC, anyState, func(any, *packet.Reader) {})
	reg.Register(packet.ClientUnknown00DE, anyState, func(any, *packet.Reader) {})
}

// OnDisconnect is the world listener's teardown hook: pull the entity out
// of its zone, save the character, drop the session registration.
func (d *Deps) OnDisconnect(c *gonet.Connection, reason string) {
	s, ok := c.Attach.(*ClientSession)
	if !ok || s.CharacterID == 0 {
		return
	}
	if s.InWorld.Load() {
		if z, ok := d.Zones.Lookup(s.ZoneKey); ok {
			guid := s.EntityGUID
			charID := s.CharacterID
			worldID := int32(s.ZoneKey.WorldID)
			z.Post(func(z *zone.Instance) {
				if e, ok := z.Entity(guid); ok {
					d.saveEntity(charID, worldID, e)
				}
				z.RemoveEntity(guid)
			})
		}
	}
	d.Manager.Deregister(c.ID)
	metrics.SessionsOnline.Set(float64(d.Manager.Online()))
	d.Log.Info("session closed",
		zap.Uint64("session", c.ID),
		zap.Uint64("character", s.CharacterID),
		zap.String("reason", reason),
	)
}
