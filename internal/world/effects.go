package world

// BuffKind classifies what an applied effect does each query or tick.
type BuffKind uint8

const (
	BuffAbsorb BuffKind = iota
	BuffStatModifier
	BuffDamageBoost
	BuffHealBoost
	BuffPeriodicDamage
	BuffPeriodicHeal
)

// Stat identifies one of the scalar attributes feeding derived values.
type Stat uint8

const (
	StatNone Stat = iota
	StatStrength
	StatDexterity
	StatTechnology
	StatMagic
	StatWisdom
	StatStamina
	StatArmor
	StatCritRating
)

// BuffDebuff is one applied effect instance on an entity.
type BuffDebuff struct {
	ID         uint32 // instance-unique per entity
	SpellID    uint32
	Kind       BuffKind
	Amount     int64 // signed: debuff stat modifiers carry negative amounts
	Stat       Stat
	DurationMS int64
	Debuff     bool
	CasterGUID GUID
	ExpiresAt  int64 // monotonic ms

	// Periodic bookkeeping for DoT/HoT kinds.
	TickIntervalMS int64
	NextTickAt     int64
}

// ActiveEffects holds an entity's applied buffs and debuffs. Expiry is
// lazy: every query takes the current time and skips entries whose
// ExpiresAt has passed. Insertion order is preserved because absorb
// consumption is order-sensitive.
//
// Owned by the entity's zone goroutine; no locking.
type ActiveEffects struct {
	order []uint32
	byID  map[uint32]*BuffDebuff
}

func NewActiveEffects() *ActiveEffects {
	return &ActiveEffects{byID: make(map[uint32]*BuffDebuff)}
}

// Apply inserts the effect, replacing any prior entry with the same ID.
// Replacement is a fresh instance: ExpiresAt and NextTickAt both reset, so
// partial tick progress of the replaced effect is discarded.
func (a *ActiveEffects) Apply(b BuffDebuff, now int64) {
	b.ExpiresAt = now + b.DurationMS
	if b.TickIntervalMS > 0 {
		b.NextTickAt = now + b.TickIntervalMS
	}
	if _, exists := a.byID[b.ID]; !exists {
		a.order = append(a.order, b.ID)
	}
	a.byID[b.ID] = &b
}

// Remove deletes the effect by instance ID. Removing an absent ID is a
// no-op, which makes apply-then-remove an identity on the container.
func (a *ActiveEffects) Remove(id uint32) {
	if _, ok := a.byID[id]; !ok {
		return
	}
	delete(a.byID, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Get returns the effect if it is active at time now.
func (a *ActiveEffects) Get(id uint32, now int64) (*BuffDebuff, bool) {
	b, ok := a.byID[id]
	if !ok || b.ExpiresAt <= now {
		return nil, false
	}
	return b, true
}

// RemainingMS reports the effect's remaining duration, 0 if expired or
// absent.
func (a *ActiveEffects) RemainingMS(id uint32, now int64) int64 {
	b, ok := a.Get(id, now)
	if !ok {
		return 0
	}
	return b.ExpiresAt - now
}

// StatTotal sums Amount over active stat-modifier effects matching stat.
// Debuffs contribute with their (typically negative) sign.
func (a *ActiveEffects) StatTotal(stat Stat, now int64) int64 {
	var total int64
	for _, id := range a.order {
		b := a.byID[id]
		if b.Kind == BuffStatModifier && b.Stat == stat && b.ExpiresAt > now {
			total += b.Amount
		}
	}
	return total
}

// AbsorbRemaining sums the shield capacity of active absorb effects.
func (a *ActiveEffects) AbsorbRemaining(now int64) int64 {
	var total int64
	for _, id := range a.order {
		b := a.byID[id]
		if b.Kind == BuffAbsorb && b.ExpiresAt > now {
			total += b.Amount
		}
	}
	return total
}

// ConsumeAbsorb feeds dmg through the active absorb shields in insertion
// order. Fully drained shields are removed; a partially drained shield
// keeps its expiry. Returns the amount absorbed and the damage left over.
func (a *ActiveEffects) ConsumeAbsorb(dmg int64, now int64) (absorbed, remaining int64) {
	remaining = dmg
	var drained []uint32
	for _, id := range a.order {
		if remaining <= 0 {
			break
		}
		b := a.byID[id]
		if b.Kind != BuffAbsorb || b.ExpiresAt <= now {
			continue
		}
		take := min(remaining, b.Amount)
		b.Amount -= take
		absorbed += take
		remaining -= take
		if b.Amount <= 0 {
			drained = append(drained, id)
		}
	}
	for _, id := range drained {
		a.Remove(id)
	}
	return absorbed, remaining
}

// Expired collects the IDs of effects whose expiry has passed. The zone
// tick uses this to broadcast removals before pruning.
func (a *ActiveEffects) Expired(now int64) []uint32 {
	var out []uint32
	for _, id := range a.order {
		if a.byID[id].ExpiresAt <= now {
			out = append(out, id)
		}
	}
	return out
}

// Periodic invokes fn for each DoT/HoT effect, expired entries included:
// the tick landing exactly at ExpiresAt is still owed, so tick bookkeeping
// decides what applies, not expiry. fn may mutate the effect's NextTickAt.
func (a *ActiveEffects) Periodic(fn func(*BuffDebuff)) {
	for _, id := range a.order {
		b := a.byID[id]
		if b.Kind == BuffPeriodicDamage || b.Kind == BuffPeriodicHeal {
			fn(b)
		}
	}
}

// All invokes fn for every active effect in insertion order.
func (a *ActiveEffects) All(now int64, fn func(*BuffDebuff)) {
	for _, id := range a.order {
		b := a.byID[id]
		if b.ExpiresAt > now {
			fn(b)
		}
	}
}

// Clear removes every effect, returning the removed IDs. Used on death.
func (a *ActiveEffects) Clear() []uint32 {
	out := make([]uint32, len(a.order))
	copy(out, a.order)
	a.order = a.order[:0]
	clear(a.byID)
	return out
}

func (a *ActiveEffects) Len() int {
	return len(a.order)
}
