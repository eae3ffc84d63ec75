package handler

import (
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// Entity command sub-opcodes inside ClientEntityCommand.
const (
	entityCmdMove uint8 = 0
	entityCmdStop uint8 = 1
	entityCmdJump uint8 = 2
)

// handleEntityCommand routes a movement update into the player's zone.
// Stop and jump carry no server-side state yet; move is validated and
// rebroadcast by the zone.
func (d *Deps) handleEntityCommand(s *ClientSession, r *packet.Reader) {
	cmd := r.ReadByte()
	switch cmd {
	case entityCmdMove:
		pos := world.Vec3{
			X: r.ReadFloat32(),
			Y: r.ReadFloat32(),
			Z: r.ReadFloat32(),
		}
		rot := r.ReadFloat32()
		if r.Err() != nil {
			s.Conn.Disconnect("malformed entity command")
			return
		}
		if z, ok := d.Zones.Lookup(s.ZoneKey); ok {
			guid := s.EntityGUID
			z.Post(func(z *zone.Instance) { z.HandleMove(guid, pos, rot) })
		}
	case entityCmdStop, entityCmdJump:
		// Client-authoritative flourishes; nothing to simulate.
	default:
		s.Conn.Disconnect("unknown entity command")
	}
}
