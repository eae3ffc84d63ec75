package handler

import (
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// handleCastSpell posts a cast request into the player's zone. All
// validation (cooldown, range, target state) happens on the zone
// goroutine against live entity state.
func (d *Deps) handleCastSpell(s *ClientSession, r *packet.Reader) {
	spellID := r.ReadUint32()
	target := world.GUID(r.ReadUint64())
	if r.Err() != nil {
		s.Conn.Disconnect("malformed cast")
		return
	}
	z, ok := d.Zones.Lookup(s.ZoneKey)
	if !ok {
		return
	}
	caster := s.EntityGUID
	now := d.Clock.NowMS()
	z.Post(func(z *zone.Instance) { z.CastSpell(caster, spellID, target, now) })
}

func (d *Deps) handleCancelCast(s *ClientSession, _ *packet.Reader) {
	if z, ok := d.Zones.Lookup(s.ZoneKey); ok {
		caster := s.EntityGUID
		z.Post(func(z *zone.Instance) { z.CancelCast(caster) })
	}
}
