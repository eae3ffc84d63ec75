package handler

import (
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// handleNpcInteract greets the player on behalf of a friendly creature.
// Hostile and dead creatures ignore the poke.
func (d *Deps) handleNpcInteract(s *ClientSession, r *packet.Reader) {
	target := world.GUID(r.ReadUint64())
	if r.Err() != nil || target.Kind() != world.KindCreature {
		return
	}
	z, ok := d.Zones.Lookup(s.ZoneKey)
	if !ok {
		return
	}
	player := s.EntityGUID
	sayRange := d.Cfg.Game.SayRange
	z.Post(func(z *zone.Instance) { z.NpcInteract(player, target, sayRange) })
}

// handleLootCorpse hands the player a corpse's rolled loot, once.
func (d *Deps) handleLootCorpse(s *ClientSession, r *packet.Reader) {
	corpse := world.GUID(r.ReadUint64())
	if r.Err() != nil || corpse.Kind() != world.KindCorpse {
		return
	}
	z, ok := d.Zones.Lookup(s.ZoneKey)
	if !ok {
		return
	}
	looter := s.EntityGUID
	z.Post(func(z *zone.Instance) { z.HandleLoot(looter, corpse) })
}
