package world

// Entity is one in-world actor: player, creature, pet, corpse or gadget.
// All fields are owned by the entity's zone goroutine; snapshots shipped
// across goroutines are value copies.
type Entity struct {
	GUID        GUID
	Kind        EntityKind
	Name        string
	Position    Vec3
	Rotation    float32 // facing, radians
	Health      uint32
	MaxHealth   uint32
	Level       uint16
	FactionID   uint32
	BaseStats   map[Stat]float32
	Effects     *ActiveEffects
	Cooldowns   *Cooldowns
	OwnerGUID   GUID // pets and corpses point back at their source
	SpawnPos    Vec3
	DisplayInfo uint32
	Targetable  bool

	// Player-only fields.
	SessionID     uint64 // back-reference for packet routing
	PlayerFaction PlayerFaction
	XP            uint64

	// Corpse-only payload.
	Loot *CorpseLoot
}

// NewEntity builds an entity with empty containers at full health.
func NewEntity(guid GUID, kind EntityKind, pos Vec3, maxHealth uint32, level uint16) *Entity {
	return &Entity{
		GUID:       guid,
		Kind:       kind,
		Position:   pos,
		SpawnPos:   pos,
		Health:     maxHealth,
		MaxHealth:  maxHealth,
		Level:      level,
		BaseStats:  make(map[Stat]float32),
		Effects:    NewActiveEffects(),
		Cooldowns:  NewCooldowns(),
		Targetable: true,
	}
}

// Dead reports whether the entity's health has reached zero.
func (e *Entity) Dead() bool {
	return e.Health == 0
}

// HealthPercent returns health as a fraction of max, 0 when max is 0.
func (e *Entity) HealthPercent() float64 {
	if e.MaxHealth == 0 {
		return 0
	}
	return float64(e.Health) / float64(e.MaxHealth)
}

// ApplyDamage feeds dmg through absorb shields first, then subtracts the
// remainder from health, clamping at zero. Returns the absorbed portion
// and the health actually lost.
func (e *Entity) ApplyDamage(dmg uint32, now int64) (absorbed, taken uint32) {
	if dmg == 0 {
		return 0, 0
	}
	abs, remaining := e.Effects.ConsumeAbsorb(int64(dmg), now)
	absorbed = uint32(abs)
	taken = uint32(remaining)
	if taken >= e.Health {
		taken = e.Health
		e.Health = 0
	} else {
		e.Health -= taken
	}
	return absorbed, taken
}

// ApplyHeal adds amount to health, clamping at MaxHealth. Returns the
// health actually restored.
func (e *Entity) ApplyHeal(amount uint32) uint32 {
	if amount == 0 || e.Dead() {
		return 0
	}
	missing := e.MaxHealth - e.Health
	if amount > missing {
		amount = missing
	}
	e.Health += amount
	return amount
}

// EffectiveStat is the base stat plus the sum of active stat modifiers.
func (e *Entity) EffectiveStat(stat Stat, now int64) float64 {
	return float64(e.BaseStats[stat]) + float64(e.Effects.StatTotal(stat, now))
}

// ArmorFraction converts the armor stat into a physical mitigation
// fraction, clamped to [0, 0.75].
func (e *Entity) ArmorFraction(now int64) float64 {
	// 100 armor per level for full mitigation keeps low-level armor relevant
	// without trivializing damage at cap.
	denom := float64(e.Level) * 100
	if denom <= 0 {
		return 0
	}
	frac := e.EffectiveStat(StatArmor, now) / denom
	if frac < 0 {
		return 0
	}
	if frac > 0.75 {
		return 0.75
	}
	return frac
}

// CorpseLoot carries a corpse's rolled loot with per-looter exactly-once
// semantics.
type CorpseLoot struct {
	Items    []LootItem
	SourceID GUID
	lootedBy map[GUID]bool
}

type LootItem struct {
	ItemID uint32
	Qty    uint32
}

func NewCorpseLoot(source GUID, items []LootItem) *CorpseLoot {
	return &CorpseLoot{
		Items:    items,
		SourceID: source,
		lootedBy: make(map[GUID]bool),
	}
}

// Take hands the loot list to looter exactly once; later calls return nil.
func (c *CorpseLoot) Take(looter GUID) []LootItem {
	if c.lootedBy[looter] {
		return nil
	}
	c.lootedBy[looter] = true
	return c.Items
}

// MakeCorpse builds the corpse entity left behind when source dies. The
// source keeps its GUID but becomes untargetable; the corpse gets a fresh
// GUID, the same position and display, and the rolled loot.
func MakeCorpse(guid GUID, source *Entity, loot []LootItem, now, corpseTTLMS int64) (*Entity, int64) {
	corpse := NewEntity(guid, KindCorpse, source.Position, 0, source.Level)
	corpse.Name = source.Name
	corpse.DisplayInfo = source.DisplayInfo
	corpse.Rotation = source.Rotation
	corpse.OwnerGUID = source.GUID
	corpse.Targetable = false
	corpse.Loot = NewCorpseLoot(source.GUID, loot)
	return corpse, now + corpseTTLMS
}
