// Package ai implements the creature brain: a threat-driven state machine
// deciding aggro, chase, attack, leash and evade each zone tick.
package ai

import (
	"github.com/nexusgo/server/internal/world"
)

// State is the creature's behavioral mode.
type State uint8

const (
	StateIdle State = iota
	StateCombat
	StateEvade
	StateDead // terminal until Respawn
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCombat:
		return "combat"
	case StateEvade:
		return "evade"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ActionKind tags the decision returned by a tick.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionAttack
	ActionChase
	ActionMoveTo
)

// Action is one decision the owning zone applies to the world.
type Action struct {
	Kind   ActionKind
	Target world.GUID
	Dest   world.Vec3
}

type threatEntry struct {
	amount uint32
	seq    uint64 // recency; ties on amount go to the most recent addition
}

// Brain holds one creature's AI state. Owned by the creature's zone
// goroutine; no locking.
type Brain struct {
	state        State
	target       world.GUID
	spawnPos     world.Vec3
	threat       map[world.GUID]threatEntry
	threatSeq    uint64
	lastAttackAt int64
	combatSince  int64
}

// Config carries the per-creature tuning the zone resolves from its
// template each tick.
type Config struct {
	AggroRange    float32
	LeashRange    float32
	AttackRange   float32
	AttackSpeedMS int64
}

func NewBrain(spawnPos world.Vec3) *Brain {
	return &Brain{
		state:    StateIdle,
		spawnPos: spawnPos,
		threat:   make(map[world.GUID]threatEntry),
	}
}

func (b *Brain) State() State         { return b.state }
func (b *Brain) Target() world.GUID   { return b.target }
func (b *Brain) SpawnPos() world.Vec3 { return b.spawnPos }
func (b *Brain) InCombat() bool       { return b.state == StateCombat }

// Candidate is one nearby player considered for aggro.
type Candidate struct {
	GUID    world.GUID
	Pos     world.Vec3
	Faction world.PlayerFaction
	Dead    bool
}

// CheckAggro scans nearby players and returns the closest hostile within
// aggro range, or false. Only an idle creature scans; distance ties
// resolve to the lower GUID so the pick is deterministic.
func (b *Brain) CheckAggro(selfPos world.Vec3, creatureFactionID uint32, factions *world.FactionTable, nearby []Candidate, aggroRange float32) (world.GUID, bool) {
	if b.state != StateIdle {
		return 0, false
	}
	rangeSq := aggroRange * aggroRange
	var best world.GUID
	var bestDistSq float32
	found := false
	for _, c := range nearby {
		if c.Dead || !factions.CreatureHostileToPlayer(creatureFactionID, c.Faction) {
			continue
		}
		dSq := selfPos.DistSq(c.Pos)
		if dSq > rangeSq {
			continue
		}
		if !found || dSq < bestDistSq || (dSq == bestDistSq && c.GUID < best) {
			best = c.GUID
			bestDistSq = dSq
			found = true
		}
	}
	return best, found
}

// EnterCombat transitions idle→combat against target.
func (b *Brain) EnterCombat(target world.GUID, now int64) {
	if b.state == StateDead {
		return
	}
	b.state = StateCombat
	b.target = target
	b.combatSince = now
}

// CheckLeash reports whether a combatant has been dragged past its leash.
// The boundary is strict: distance exactly at the leash range is still
// acceptable.
func (b *Brain) CheckLeash(currentPos world.Vec3, leashRange float32) bool {
	if b.state != StateCombat {
		return false
	}
	return currentPos.Dist(b.spawnPos) > leashRange
}

// BeginEvade drops combat and heads home. Threat and target clear
// immediately so damage during the walk back is ignored.
func (b *Brain) BeginEvade() {
	if b.state == StateDead {
		return
	}
	b.state = StateEvade
	b.target = 0
	clear(b.threat)
}

// ArrivedHome completes an evade once the creature reaches its spawn.
func (b *Brain) ArrivedHome() {
	if b.state == StateEvade {
		b.state = StateIdle
	}
}

// OnDeath is terminal until Respawn.
func (b *Brain) OnDeath() {
	b.state = StateDead
	b.target = 0
	clear(b.threat)
}

// Respawn resets the brain to idle at its spawn point.
func (b *Brain) Respawn() {
	b.state = StateIdle
	b.target = 0
	b.lastAttackAt = 0
	clear(b.threat)
}

// AddThreat accumulates aggression from guid. The first threat against an
// idle creature does not itself transition state — the zone decides that —
// but combat targets switch when someone overtakes the current one.
func (b *Brain) AddThreat(guid world.GUID, amount uint32) {
	if amount == 0 || guid == 0 || b.state == StateDead || b.state == StateEvade {
		return
	}
	b.threatSeq++
	e := b.threat[guid]
	e.amount += amount
	e.seq = b.threatSeq
	b.threat[guid] = e

	if b.state == StateCombat && b.target != 0 && guid != b.target {
		if e.amount > b.threat[b.target].amount {
			b.target = guid
		}
	}
}

// HighestThreat returns the GUID with maximum accumulated threat; ties go
// to the most recent addition. ok is false when the table is empty.
func (b *Brain) HighestThreat() (world.GUID, bool) {
	var best world.GUID
	var bestEntry threatEntry
	found := false
	for guid, e := range b.threat {
		if !found || e.amount > bestEntry.amount ||
			(e.amount == bestEntry.amount && e.seq > bestEntry.seq) {
			best = guid
			bestEntry = e
			found = true
		}
	}
	return best, found
}

// DropTarget removes guid from the threat table (death, disconnect, out of
// range). If it was the current target the next-highest takes over; an
// empty table drops the creature back to idle with cleared state.
func (b *Brain) DropTarget(guid world.GUID) {
	delete(b.threat, guid)
	if b.target != guid {
		return
	}
	if next, ok := b.HighestThreat(); ok {
		b.target = next
		return
	}
	b.target = 0
	if b.state == StateCombat {
		b.state = StateIdle
	}
}

// Tick picks this tick's action. In combat it attacks when the swing timer
// is up; evading it walks home; idle and dead do nothing.
func (b *Brain) Tick(cfg Config, now int64) Action {
	switch b.state {
	case StateCombat:
		if b.target == 0 {
			return Action{Kind: ActionNone}
		}
		if now-b.lastAttackAt >= cfg.AttackSpeedMS {
			b.lastAttackAt = now
			return Action{Kind: ActionAttack, Target: b.target}
		}
		return Action{Kind: ActionNone}
	case StateEvade:
		return Action{Kind: ActionMoveTo, Dest: b.spawnPos}
	default:
		return Action{Kind: ActionNone}
	}
}

// CombatAction resolves an attack decision against the target's position:
// swing if in range, otherwise close the gap.
func (b *Brain) CombatAction(selfPos, targetPos world.Vec3, attackRange float32) Action {
	if selfPos.Dist(targetPos) <= attackRange {
		return Action{Kind: ActionAttack, Target: b.target}
	}
	return Action{Kind: ActionChase, Target: b.target, Dest: targetPos}
}
