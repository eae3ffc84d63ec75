package handler

import (
	"errors"
	"unicode/utf8"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// Chat channels on the wire.
const (
	chatChannelSay     uint8 = 0
	chatChannelYell    uint8 = 1
	chatChannelEmote   uint8 = 2
	chatChannelWhisper uint8 = 3
	chatChannelZone    uint8 = 4
	chatChannelSystem  uint8 = 5
)

// Whisper result codes in ServerChatResult.
const (
	chatResultOK           uint8 = 0
	chatResultOffline      uint8 = 1
	chatResultWrongFaction uint8 = 2
	chatResultIgnored      uint8 = 3
)

// chatRoute normalizes a wire channel: ranged channels carry their radius,
// zone and system report unbounded routing through the session manager.
// Unknown channels fall back to say rather than striking the client.
func chatRoute(g *config.GameConfig, channel uint8) (normalized uint8, radius float32, unbounded bool) {
	switch channel {
	case chatChannelYell:
		return channel, g.YellRange, false
	case chatChannelEmote:
		return channel, g.EmoteRange, false
	case chatChannelZone, chatChannelSystem:
		return channel, 0, true
	case chatChannelSay:
		return channel, g.SayRange, false
	default:
		return chatChannelSay, g.SayRange, false
	}
}

// chatPacket builds the ServerChat payload: channel, speaker GUID, speaker
// name, text. The zone's spatial broadcast emits the same layout.
func chatPacket(channel uint8, speaker world.GUID, name, text string) []byte {
	w := packet.NewWriter()
	w.WriteByte(channel)
	w.WriteUint64(uint64(speaker))
	w.WriteStringPacked(name)
	w.WriteStringPacked(text)
	return w.Bytes()
}

// handleChat fans local chat out through the zone; zone and system chat
// are range-free and route through the session manager instead.
func (d *Deps) handleChat(s *ClientSession, r *packet.Reader) {
	channel := r.ReadByte()
	text, err := r.ReadStringPacked()
	if err != nil || r.Err() != nil {
		s.Conn.Disconnect("malformed chat")
		return
	}
	if text == "" || utf8.RuneCountInString(text) > d.Cfg.Game.MaxChatLength {
		return
	}

	channel, radius, unbounded := chatRoute(&d.Cfg.Game, channel)
	if unbounded {
		from, ok := d.Manager.LookupByID(s.Conn.ID)
		if !ok {
			return
		}
		payload := chatPacket(channel, from.EntityGUID, from.CharacterName, text)
		if channel == chatChannelSystem {
			d.Manager.BroadcastAll(uint16(packet.ServerChat), payload)
		} else {
			d.Manager.BroadcastToZone(s.ZoneKey, uint16(packet.ServerChat), payload)
		}
		return
	}

	if z, ok := d.Zones.Lookup(s.ZoneKey); ok {
		guid := s.EntityGUID
		z.Post(func(z *zone.Instance) { z.Say(guid, channel, text, radius) })
	}
}

// handleWhisper routes a private message through the session manager:
// range-free, cross-zone, but never cross-faction.
func (d *Deps) handleWhisper(s *ClientSession, r *packet.Reader) {
	targetName, err1 := r.ReadStringPacked()
	text, err2 := r.ReadStringPacked()
	if err1 != nil || err2 != nil || r.Err() != nil {
		s.Conn.Disconnect("malformed whisper")
		return
	}
	if text == "" || utf8.RuneCountInString(text) > d.Cfg.Game.MaxChatLength {
		return
	}

	from, ok := d.Manager.LookupByID(s.Conn.ID)
	if !ok {
		return
	}
	target, err := d.Manager.RouteWhisper(from, targetName)
	if err != nil {
		s.send(packet.ServerChatResult, func(w *packet.Writer) {
			w.WriteByte(whisperResultCode(err))
			w.WriteStringPacked(targetName)
		})
		return
	}

	w := packet.NewWriter()
	w.WriteByte(chatChannelWhisper)
	w.WriteUint64(uint64(from.EntityGUID))
	w.WriteStringPacked(from.CharacterName)
	w.WriteStringPacked(text)
	target.Conn.SendPacket(uint16(packet.ServerChat), w.Bytes())

	s.send(packet.ServerChatResult, func(w *packet.Writer) {
		w.WriteByte(chatResultOK)
		w.WriteStringPacked(target.CharacterName)
	})
}

func whisperResultCode(err error) uint8 {
	switch {
	case errors.Is(err, world.ErrRecipientFaction):
		return chatResultWrongFaction
	case errors.Is(err, world.ErrRecipientIgnoredYou):
		return chatResultIgnored
	default:
		return chatResultOffline
	}
}
