package world

import (
	"fmt"
	"sync/atomic"
)

// EntityKind is encoded in the high byte of every GUID so any subsystem can
// tell what an identifier refers to without a lookup.
type EntityKind uint8

const (
	KindPlayer   EntityKind = 0x01
	KindCreature EntityKind = 0x02
	KindPet      EntityKind = 0x03
	KindCorpse   EntityKind = 0x04
	KindGadget   EntityKind = 0x05
)

func (k EntityKind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindCreature:
		return "creature"
	case KindPet:
		return "pet"
	case KindCorpse:
		return "corpse"
	case KindGadget:
		return "gadget"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// GUID is a process-unique 64-bit entity identifier: kind tag in the high
// byte, monotonic counter in the low 56 bits.
type GUID uint64

func (g GUID) Kind() EntityKind {
	return EntityKind(g >> 56)
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%d", g.Kind(), uint64(g)&0x00ffffffffffffff)
}

// GUIDGenerator hands out GUIDs that are unique for the life of the
// process. Safe for concurrent use.
type GUIDGenerator struct {
	next atomic.Uint64
}

func NewGUIDGenerator() *GUIDGenerator {
	return &GUIDGenerator{}
}

func (g *GUIDGenerator) Next(kind EntityKind) GUID {
	n := g.next.Add(1)
	return GUID(uint64(kind)<<56 | n&0x00ffffffffffffff)
}
