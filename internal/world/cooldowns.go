package world

// Cooldowns tracks per-spell ready times plus the shared global cooldown.
// Times are monotonic milliseconds; a zero or past ready time means ready,
// so a cooldown set with duration 0 is immediately castable.
//
// Owned by the entity's zone goroutine; no locking.
type Cooldowns struct {
	readyAt    map[uint32]int64 // spellID → ready-at ms
	gcdReadyAt int64
}

func NewCooldowns() *Cooldowns {
	return &Cooldowns{readyAt: make(map[uint32]int64)}
}

// CanCast reports whether the spell is off cooldown, and — when the spell
// is GCD-bound — whether the global cooldown has elapsed too.
func (c *Cooldowns) CanCast(spellID uint32, triggersGCD bool, now int64) bool {
	if now < c.readyAt[spellID] {
		return false
	}
	if triggersGCD && now < c.gcdReadyAt {
		return false
	}
	return true
}

// Start puts the spell on cooldown and, if it is GCD-bound, arms the
// global cooldown as well.
func (c *Cooldowns) Start(spellID uint32, cooldownMS int64, triggersGCD bool, gcdMS int64, now int64) {
	c.readyAt[spellID] = now + cooldownMS
	if triggersGCD {
		c.gcdReadyAt = now + gcdMS
	}
}

// ReadyAt returns when the spell comes off cooldown (0 if never started).
func (c *Cooldowns) ReadyAt(spellID uint32) int64 {
	return c.readyAt[spellID]
}

// GCDReadyAt returns when the global cooldown elapses.
func (c *Cooldowns) GCDReadyAt() int64 {
	return c.gcdReadyAt
}
