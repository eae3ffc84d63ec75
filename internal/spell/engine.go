// Package spell implements cast admissibility, damage and heal math, and
// the periodic-effect bookkeeping behind DoTs and HoTs.
package spell

import (
	"errors"
	"math/rand"

	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/world"
)

var (
	ErrOnCooldown      = errors.New("spell on cooldown")
	ErrOutOfRange      = errors.New("target out of range")
	ErrTargetDead      = errors.New("target is dead")
	ErrTargetInvalid   = errors.New("invalid target for spell")
	ErrCastInterrupted = errors.New("cast interrupted")
	ErrAlreadyCasting  = errors.New("already casting")
	ErrUnknownSpell    = errors.New("unknown spell")
)

const critMultiplier = 1.5

// Engine computes spell outcomes. It is stateless apart from its tuning
// and RNG, but the RNG confines it to a single goroutine; each zone owns
// one Engine.
type Engine struct {
	gcdMS      int64
	critChance float64
	rng        *rand.Rand
}

func NewEngine(gcdMS int64, critChance float64, rng *rand.Rand) *Engine {
	return &Engine{gcdMS: gcdMS, critChance: critChance, rng: rng}
}

// GCD returns the configured global cooldown in milliseconds.
func (e *Engine) GCD() int64 {
	return e.gcdMS
}

// CanCast validates cooldowns, GCD, target liveness and range. The caster
// itself is always in range of self-targeted spells.
func (e *Engine) CanCast(caster, target *world.Entity, sp *data.SpellTemplate, now int64) error {
	if sp == nil {
		return ErrUnknownSpell
	}
	if !caster.Cooldowns.CanCast(sp.ID, sp.TriggersGCD, now) {
		return ErrOnCooldown
	}
	switch sp.TargetType {
	case "self":
		return nil
	case "enemy":
		if target == nil || target.Dead() || !target.Targetable {
			return ErrTargetDead
		}
	case "ally":
		if target == nil {
			return ErrTargetInvalid
		}
	default:
		return ErrTargetInvalid
	}
	if caster.Position.Dist(target.Position) > sp.Range {
		return ErrOutOfRange
	}
	return nil
}

// StartCooldowns arms the spell's cooldown and, if GCD-bound, the global
// cooldown. Called on cast completion, not cast start.
func (e *Engine) StartCooldowns(caster *world.Entity, sp *data.SpellTemplate, now int64) {
	caster.Cooldowns.Start(sp.ID, sp.CooldownMS, sp.TriggersGCD, e.gcdMS, now)
}

// rollCrit draws one crit decision.
func (e *Engine) rollCrit(forceCrit bool) bool {
	return forceCrit || e.rng.Float64() < e.critChance
}

// ComputeDamage resolves one damage effect against the target's armor.
// Physical damage is mitigated by the armor fraction; other schools pass
// through. The result has not yet met the target's absorb shields — the
// entity applies those.
func (e *Engine) ComputeDamage(caster, target *world.Entity, eff data.SpellEffectDef, forceCrit bool, now int64) (uint32, bool) {
	base := float64(eff.Amount) + caster.EffectiveStat(data.Stat(eff.ScalingStat), now)*eff.ScalingFactor
	if eff.School == "physical" {
		base *= 1 - target.ArmorFraction(now)
	}
	crit := e.rollCrit(forceCrit)
	if crit {
		base *= critMultiplier
	}
	if base < 0 {
		base = 0
	}
	return uint32(base), crit
}

// ComputeHeal resolves one heal effect. The returned amount is uncapped;
// ApplyHeal clamps at the target's missing health.
func (e *Engine) ComputeHeal(caster *world.Entity, eff data.SpellEffectDef, forceCrit bool, now int64) (uint32, bool) {
	amount := float64(eff.Amount) + caster.EffectiveStat(data.Stat(eff.ScalingStat), now)*eff.ScalingFactor
	crit := e.rollCrit(forceCrit)
	if crit {
		amount *= critMultiplier
	}
	if amount < 0 {
		amount = 0
	}
	return uint32(amount), crit
}

// TickCount returns how many periodic applications an effect definition
// yields over its lifetime.
func TickCount(eff data.SpellEffectDef) int64 {
	if eff.TickIntervalMS <= 0 {
		return 0
	}
	return eff.DurationMS / eff.TickIntervalMS
}

// PendingTicks reports how many periodic ticks of b are due at now and
// advances NextTickAt past them in whole interval multiples, so a stalled
// scheduler coalesces missed windows instead of dropping them. Ticks never
// accrue past the effect's expiry, but the tick landing exactly at
// ExpiresAt still counts: a DoT of duration d and interval i owes d/i
// applications total.
func PendingTicks(b *world.BuffDebuff, now int64) int {
	if b.TickIntervalMS <= 0 || b.NextTickAt == 0 {
		return 0
	}
	cutoff := now
	if b.ExpiresAt < cutoff {
		cutoff = b.ExpiresAt
	}
	if cutoff < b.NextTickAt {
		return 0
	}
	pending := (cutoff-b.NextTickAt)/b.TickIntervalMS + 1
	b.NextTickAt += pending * b.TickIntervalMS
	return int(pending)
}

// Cast is an in-progress non-instant cast.
type Cast struct {
	SpellID    uint32
	TargetGUID world.GUID
	Deadline   int64 // monotonic ms; effects apply when now >= Deadline
	ForceCrit  bool
}

// NewCast starts a cast finishing after the spell's cast time.
func NewCast(sp *data.SpellTemplate, target world.GUID, now int64) *Cast {
	return &Cast{SpellID: sp.ID, TargetGUID: target, Deadline: now + sp.CastTimeMS}
}

// Complete reports whether the cast time has elapsed.
func (c *Cast) Complete(now int64) bool {
	return now >= c.Deadline
}
