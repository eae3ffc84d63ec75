package zone

import (
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

// wirePacket pairs an opcode with its built payload so the broadcast
// helpers can hand both to a Sender in one value.
type wirePacket struct {
	op      packet.Opcode
	payload []byte
}

func entityCreatePacket(e *world.Entity) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(e.GUID))
	w.WriteByte(byte(e.Kind))
	w.WriteStringPacked(e.Name)
	w.WriteFloat32(e.Position.X)
	w.WriteFloat32(e.Position.Y)
	w.WriteFloat32(e.Position.Z)
	w.WriteFloat32(e.Rotation)
	w.WriteUint32(e.Health)
	w.WriteUint32(e.MaxHealth)
	w.WriteUint16(e.Level)
	w.WriteUint32(e.FactionID)
	w.WriteUint32(e.DisplayInfo)
	w.WriteBool(e.Targetable)
	w.WriteBool(e.Loot != nil && len(e.Loot.Items) > 0)
	return wirePacket{packet.ServerEntityCreate, w.Bytes()}
}

func entityDestroyPacket(guid world.GUID) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(guid))
	return wirePacket{packet.ServerEntityDestroy, w.Bytes()}
}

// entityCommandPacket rebroadcasts a movement update.
func entityCommandPacket(e *world.Entity) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(e.GUID))
	w.WriteFloat32(e.Position.X)
	w.WriteFloat32(e.Position.Y)
	w.WriteFloat32(e.Position.Z)
	w.WriteFloat32(e.Rotation)
	return wirePacket{packet.ServerEntityCommand, w.Bytes()}
}

func entityHealthPacket(e *world.Entity, absorbed, taken uint32) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(e.GUID))
	w.WriteUint32(e.Health)
	w.WriteUint32(e.MaxHealth)
	w.WriteUint32(absorbed)
	w.WriteUint32(taken)
	return wirePacket{packet.ServerEntityHealth, w.Bytes()}
}

func entityDeathPacket(guid, killer world.GUID) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(guid))
	w.WriteUint64(uint64(killer))
	return wirePacket{packet.ServerEntityDeath, w.Bytes()}
}

func buffApplyPacket(target world.GUID, b world.BuffDebuff) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(target))
	w.WriteUint32(b.ID)
	w.WriteUint32(b.SpellID)
	w.WriteByte(byte(b.Kind))
	w.WriteUint64(uint64(b.Amount))
	w.WriteUint64(uint64(b.DurationMS))
	w.WriteBool(b.Debuff)
	w.WriteUint64(uint64(b.CasterGUID))
	return wirePacket{packet.ServerSpellBuff, w.Bytes()}
}

func buffRemovePacket(target world.GUID, buffID uint32) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(target))
	w.WriteUint32(buffID)
	return wirePacket{packet.ServerSpellBuffRemove, w.Bytes()}
}

func spellStartPacket(caster world.GUID, spellID uint32, target world.GUID, castTimeMS int64) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(caster))
	w.WriteUint32(spellID)
	w.WriteUint64(uint64(target))
	w.WriteUint32(uint32(castTimeMS))
	return wirePacket{packet.ServerSpellStart, w.Bytes()}
}

func spellGoPacket(caster world.GUID, spellID uint32, target world.GUID) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(caster))
	w.WriteUint32(spellID)
	w.WriteUint64(uint64(target))
	return wirePacket{packet.ServerSpellGo, w.Bytes()}
}

func castResultPacket(spellID uint32, code castResultCode) wirePacket {
	w := packet.NewWriter()
	w.WriteUint32(spellID)
	w.WriteByte(byte(code))
	return wirePacket{packet.ServerSpellCastResult, w.Bytes()}
}

func chatPacket(from world.GUID, name string, channel uint8, text string) wirePacket {
	w := packet.NewWriter()
	w.WriteByte(channel)
	w.WriteUint64(uint64(from))
	w.WriteStringPacked(name)
	w.WriteStringPacked(text)
	return wirePacket{packet.ServerChat, w.Bytes()}
}

func threatPacket(creature, target world.GUID) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(creature))
	w.WriteUint64(uint64(target))
	return wirePacket{packet.ServerThreatList, w.Bytes()}
}

func xpGainPacket(amount uint64) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(amount)
	return wirePacket{packet.ServerXPGain, w.Bytes()}
}

func levelUpPacket(guid world.GUID, level uint16) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(guid))
	w.WriteUint16(level)
	return wirePacket{packet.ServerLevelUp, w.Bytes()}
}

func lootResultPacket(corpse world.GUID, items []world.LootItem) wirePacket {
	w := packet.NewWriter()
	w.WriteUint64(uint64(corpse))
	w.WriteUint(uint64(len(items)), 8)
	for _, it := range items {
		w.WriteUint32(it.ItemID)
		w.WriteUint32(it.Qty)
	}
	return wirePacket{packet.ServerLootResult, w.Bytes()}
}
