// Package zone runs the per-zone authoritative simulation: one goroutine
// owns the entity set, the spatial grid, creature brains and the tick
// loop. Everything else talks to a zone through its mailbox.
package zone

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/ai"
	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/game"
	"github.com/nexusgo/server/internal/metrics"
	"github.com/nexusgo/server/internal/scripting"
	"github.com/nexusgo/server/internal/spell"
	"github.com/nexusgo/server/internal/world"
)

// Command is one unit of work posted into the zone's mailbox. It runs on
// the zone goroutine with exclusive access to the instance.
type Command func(z *Instance)

// maxMoveDelta bounds one movement update's displacement. Larger jumps
// are dropped as implausible; the client resyncs from the next accepted
// position broadcast.
const maxMoveDelta float32 = 100

// chaseStep is how far a creature closes toward its target per tick.
const chaseStep float32 = 5

type respawnEntry struct {
	spawn data.SpawnEntry
	dueAt int64
}

// creatureMeta ties a spawned creature back to its template and spawn
// point so death can schedule the right respawn.
type creatureMeta struct {
	templateID uint32
	spawn      data.SpawnEntry
}

// Instance is one running zone. Fields are touched only by the zone
// goroutine after Start.
type Instance struct {
	Key world.ZoneKey

	log     *zap.Logger
	cfg     config.GameConfig
	content *data.Store
	mgr     *world.Manager
	spells  *spell.Engine
	scripts *scripting.Engine
	rng     *rand.Rand

	mailbox chan Command
	done    chan struct{}

	entities      map[world.GUID]*world.Entity
	grid          *world.SpatialGrid
	brains        map[world.GUID]*ai.Brain
	creatures     map[world.GUID]creatureMeta
	casts         map[world.GUID]*spell.Cast
	corpseDespawn map[world.GUID]int64
	respawns      []respawnEntry
	buffSeq       uint32

	draining bool // shutdown: reject new entities, finish the tick loop
}

// New builds a zone instance from its template. Call Start to launch the
// actor goroutine.
func New(key world.ZoneKey, tmpl *data.ZoneTemplate, cfg config.GameConfig, content *data.Store, mgr *world.Manager, scripts *scripting.Engine, log *zap.Logger) *Instance {
	cellSize := cfg.GridCellSize
	if tmpl != nil && tmpl.GridCellSize > 0 {
		cellSize = tmpl.GridCellSize
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(key.WorldID)<<32 ^ int64(key.InstanceID)))
	return &Instance{
		Key:           key,
		log:           log.With(zap.Uint32("zone", key.WorldID), zap.Uint32("instance", key.InstanceID)),
		cfg:           cfg,
		content:       content,
		mgr:           mgr,
		spells:        spell.NewEngine(cfg.GCD.Milliseconds(), cfg.CritChance, rng),
		scripts:       scripts,
		rng:           rng,
		mailbox:       make(chan Command, 256),
		done:          make(chan struct{}),
		entities:      make(map[world.GUID]*world.Entity),
		grid:          world.NewSpatialGrid(cellSize),
		brains:        make(map[world.GUID]*ai.Brain),
		creatures:     make(map[world.GUID]creatureMeta),
		casts:         make(map[world.GUID]*spell.Cast),
		corpseDespawn: make(map[world.GUID]int64),
	}
}

// Start seeds the spawn table and launches the zone goroutine.
func (z *Instance) Start(tmpl *data.ZoneTemplate) {
	if tmpl != nil {
		for _, sp := range tmpl.Spawns {
			count := sp.Count
			if count <= 0 {
				count = 1
			}
			for i := 0; i < count; i++ {
				z.spawnCreature(sp)
			}
		}
	}
	go z.run()
}

// Post queues work onto the zone goroutine. Returns false once the zone
// is shutting down.
func (z *Instance) Post(cmd Command) bool {
	select {
	case <-z.done:
		return false
	default:
	}
	select {
	case z.mailbox <- cmd:
		return true
	case <-z.done:
		return false
	}
}

// PostTick is the scheduler's entry point. Non-blocking: if the mailbox
// is saturated the tick is dropped, never queued behind itself.
func (z *Instance) PostTick(nowMS int64) {
	select {
	case <-z.done:
		return
	default:
	}
	select {
	case z.mailbox <- func(z *Instance) { z.tick(nowMS) }:
	default:
		metrics.TickSkips.Inc()
	}
}

// Shutdown stops the zone: disconnect resident players and end the actor
// goroutine. Commands still queued behind the shutdown are discarded.
func (z *Instance) Shutdown() {
	z.Post(func(z *Instance) {
		z.draining = true
		for guid := range z.entities {
			if guid.Kind() != world.KindPlayer {
				continue
			}
			if sess, ok := z.mgr.LookupByGUID(guid); ok && sess.Conn != nil {
				sess.Conn.Disconnect("zone shutting down")
			}
		}
		close(z.done)
	})
}

func (z *Instance) run() {
	for {
		select {
		case <-z.done:
			return
		case cmd := <-z.mailbox:
			cmd(z)
		}
	}
}

// ─── membership ────────────────────────────────────────────────────

// AddPlayer inserts a player entity, announces it to neighbors and sends
// the newcomer everything already resident. Rejected while draining.
func (z *Instance) AddPlayer(e *world.Entity) bool {
	if z.draining {
		return false
	}
	z.addEntity(e)
	z.broadcastPacket(e.Position, z.cfg.YellRange, e.GUID, entityCreatePacket(e))
	if sess, ok := z.mgr.LookupByGUID(e.GUID); ok && sess.Conn != nil {
		for _, other := range z.entities {
			if other.GUID == e.GUID {
				continue
			}
			pkt := entityCreatePacket(other)
			sess.Conn.SendPacket(uint16(pkt.op), pkt.payload)
		}
	}
	return true
}

func (z *Instance) addEntity(e *world.Entity) {
	z.entities[e.GUID] = e
	z.grid.Insert(e.GUID, e.Position)
	metrics.ZoneEntities.WithLabelValues(z.label()).Set(float64(len(z.entities)))
}

// RemoveEntity drops the entity from the zone and tells neighbors.
func (z *Instance) RemoveEntity(guid world.GUID) {
	e, ok := z.entities[guid]
	if !ok {
		return
	}
	delete(z.entities, guid)
	z.grid.Remove(guid)
	delete(z.brains, guid)
	delete(z.creatures, guid)
	delete(z.casts, guid)
	delete(z.corpseDespawn, guid)
	for _, brain := range z.brains {
		brain.DropTarget(guid)
	}
	z.broadcastPacket(e.Position, z.cfg.YellRange, 0, entityDestroyPacket(guid))
	metrics.ZoneEntities.WithLabelValues(z.label()).Set(float64(len(z.entities)))
}

// Entity returns the live entity. Zone-goroutine only.
func (z *Instance) Entity(guid world.GUID) (*world.Entity, bool) {
	e, ok := z.entities[guid]
	return e, ok
}

// EntitiesNear wraps the grid query. Zone-goroutine only.
func (z *Instance) EntitiesNear(pos world.Vec3, radius float32) []world.GUID {
	return z.grid.QueryRange(pos, radius)
}

func (z *Instance) label() string {
	return fmt.Sprintf("%d/%d", z.Key.WorldID, z.Key.InstanceID)
}

func (z *Instance) spawnCreature(sp data.SpawnEntry) {
	tmpl := z.content.GetCreatureTemplate(sp.CreatureID)
	if tmpl == nil {
		z.log.Warn("spawn references unknown creature", zap.Uint32("creature", sp.CreatureID))
		return
	}
	pos := world.Vec3{X: sp.X, Y: sp.Y, Z: sp.Z}
	e := world.NewEntity(z.mgr.GenerateGUID(world.KindCreature), world.KindCreature, pos, tmpl.MaxHealth, tmpl.Level)
	e.Name = tmpl.Name
	e.FactionID = tmpl.FactionID
	e.DisplayInfo = tmpl.DisplayInfo
	e.Rotation = sp.Rotation
	e.BaseStats[world.StatArmor] = tmpl.Armor
	z.addEntity(e)
	z.brains[e.GUID] = ai.NewBrain(pos)
	z.creatures[e.GUID] = creatureMeta{templateID: tmpl.ID, spawn: sp}
	z.broadcastPacket(e.Position, z.cfg.YellRange, 0, entityCreatePacket(e))
}

func (z *Instance) templateFor(guid world.GUID) *data.CreatureTemplate {
	meta, ok := z.creatures[guid]
	if !ok {
		return nil
	}
	return z.content.GetCreatureTemplate(meta.templateID)
}

// ─── movement ──────────────────────────────────────────────────────

// HandleMove validates a client movement update and propagates it. Moves
// beyond the plausibility bound are dropped.
func (z *Instance) HandleMove(guid world.GUID, pos world.Vec3, rotation float32) {
	e, ok := z.entities[guid]
	if !ok || e.Dead() {
		return
	}
	if e.Position.Dist(pos) > maxMoveDelta {
		z.log.Warn("implausible move dropped",
			zap.Stringer("guid", guid),
			zap.Float32("dist", e.Position.Dist(pos)),
		)
		return
	}
	e.Position = pos
	e.Rotation = rotation
	z.grid.Move(guid, pos)
	z.broadcastPacket(pos, z.cfg.YellRange, guid, entityCommandPacket(e))
}

// moveEntity applies a server-side (AI) move.
func (z *Instance) moveEntity(e *world.Entity, dest world.Vec3) {
	e.Position = dest
	z.grid.Move(e.GUID, dest)
	z.broadcastPacket(dest, z.cfg.YellRange, 0, entityCommandPacket(e))
}

// ─── broadcast ─────────────────────────────────────────────────────

// broadcastPacket delivers pkt exactly once to each player session within
// radius of center. skip excludes one GUID (usually the originator of an
// event it already knows about); 0 skips nobody.
func (z *Instance) broadcastPacket(center world.Vec3, radius float32, skip world.GUID, pkt wirePacket) {
	for _, guid := range z.grid.QueryRange(center, radius) {
		if guid == skip || guid.Kind() != world.KindPlayer {
			continue
		}
		sess, ok := z.mgr.LookupByGUID(guid)
		if !ok || sess.Conn == nil {
			continue
		}
		sess.Conn.SendPacket(uint16(pkt.op), pkt.payload)
		metrics.BroadcastPackets.Inc()
	}
}

// sendTo delivers pkt to one entity's session, if it has one.
func (z *Instance) sendTo(guid world.GUID, pkt wirePacket) {
	if sess, ok := z.mgr.LookupByGUID(guid); ok && sess.Conn != nil {
		sess.Conn.SendPacket(uint16(pkt.op), pkt.payload)
	}
}

// ─── combat ────────────────────────────────────────────────────────

// DealDamage runs the full damage path: absorb, health, cast pushback,
// threat, death. attacker may be 0 for environmental damage.
func (z *Instance) DealDamage(attacker world.GUID, target *world.Entity, dmg uint32, nowMS int64) {
	if target.Dead() {
		return
	}
	absorbed, taken := target.ApplyDamage(dmg, nowMS)
	z.broadcastPacket(target.Position, z.cfg.YellRange, 0, entityHealthPacket(target, absorbed, taken))

	if taken >= z.cfg.CastPushback {
		if cast, casting := z.casts[target.GUID]; casting {
			delete(z.casts, target.GUID)
			z.sendTo(target.GUID, castResultPacket(cast.SpellID, castResultInterrupted))
		}
	}

	if brain, ok := z.brains[target.GUID]; ok && attacker != 0 {
		brain.AddThreat(attacker, taken+absorbed)
		if brain.State() == ai.StateIdle {
			brain.EnterCombat(attacker, nowMS)
			z.onAggro(target, attacker)
		}
	}

	if target.Dead() {
		z.onDeath(target, attacker, nowMS)
	}
}

func (z *Instance) onAggro(creature *world.Entity, target world.GUID) {
	z.broadcastPacket(creature.Position, z.cfg.YellRange, 0, threatPacket(creature.GUID, target))
	tmpl := z.templateFor(creature.GUID)
	if z.scripts != nil && tmpl != nil && tmpl.ScriptName != "" {
		z.scripts.OnAggro(tmpl.ScriptName, scripting.HookEvent{
			CreatureID:   tmpl.ID,
			CreatureGUID: uint64(creature.GUID),
			OtherGUID:    uint64(target),
			HealthPct:    creature.HealthPercent(),
		})
	}
}

func (z *Instance) onDeath(e *world.Entity, killer world.GUID, nowMS int64) {
	e.Targetable = false
	for _, id := range e.Effects.Clear() {
		z.broadcastPacket(e.Position, z.cfg.YellRange, 0, buffRemovePacket(e.GUID, id))
	}
	z.broadcastPacket(e.Position, z.cfg.YellRange, 0, entityDeathPacket(e.GUID, killer))

	if brain, ok := z.brains[e.GUID]; ok {
		brain.OnDeath()
	}
	for guid, brain := range z.brains {
		if guid != e.GUID {
			brain.DropTarget(e.GUID)
		}
	}
	delete(z.casts, e.GUID)

	if e.Kind == world.KindCreature {
		z.creatureDied(e, killer, nowMS)
	}
}

func (z *Instance) creatureDied(e *world.Entity, killer world.GUID, nowMS int64) {
	meta, ok := z.creatures[e.GUID]
	if !ok {
		return
	}
	tmpl := z.content.GetCreatureTemplate(meta.templateID)
	if tmpl == nil {
		return
	}

	if z.scripts != nil && tmpl.ScriptName != "" {
		z.scripts.OnDeath(tmpl.ScriptName, scripting.HookEvent{
			CreatureID:   tmpl.ID,
			CreatureGUID: uint64(e.GUID),
			OtherGUID:    uint64(killer),
		})
	}

	if killerEnt, ok := z.entities[killer]; ok && killerEnt.Kind == world.KindPlayer {
		z.awardKillXP(killerEnt, e.Level, tmpl.XPReward)
	}

	loot := z.content.LootRoll(tmpl.LootTableID, z.rng)
	corpse, despawnAt := world.MakeCorpse(z.mgr.GenerateGUID(world.KindCorpse), e, loot, nowMS, z.cfg.CorpseTTL.Milliseconds())
	z.addEntity(corpse)
	z.corpseDespawn[corpse.GUID] = despawnAt
	z.broadcastPacket(corpse.Position, z.cfg.YellRange, 0, entityCreatePacket(corpse))

	delay := meta.spawn.RespawnDelayMS
	if delay <= 0 {
		delay = z.cfg.RespawnDelay.Milliseconds()
	}
	z.RemoveEntity(e.GUID)
	z.respawns = append(z.respawns, respawnEntry{spawn: meta.spawn, dueAt: nowMS + delay})
}

func (z *Instance) awardKillXP(killer *world.Entity, victimLevel uint16, reward uint32) {
	gained := game.XPFromKill(killer.Level, victimLevel, reward)
	if gained == 0 {
		return
	}
	killer.XP += gained
	z.sendTo(killer.GUID, xpGainPacket(gained))
	newLevel, remaining, leveled := game.CheckLevelUp(killer.Level, killer.XP)
	if leveled {
		killer.Level = newLevel
		killer.XP = remaining
		z.broadcastPacket(killer.Position, z.cfg.YellRange, 0, levelUpPacket(killer.GUID, newLevel))
	}
}

// ─── loot ──────────────────────────────────────────────────────────

// HandleLoot hands a corpse's loot to looter exactly once and sends the
// result packet. Later attempts and unknown corpses yield an empty list.
func (z *Instance) HandleLoot(looter, corpseGUID world.GUID) {
	var items []world.LootItem
	if corpse, ok := z.entities[corpseGUID]; ok && corpse.Loot != nil {
		items = corpse.Loot.Take(looter)
	}
	z.sendTo(looter, lootResultPacket(corpseGUID, items))
}

// ─── spells ────────────────────────────────────────────────────────

type castResultCode uint8

const (
	castResultOK castResultCode = iota
	castResultOnCooldown
	castResultOutOfRange
	castResultTargetDead
	castResultInterrupted
	castResultInvalid
)

// CastSpell begins or instantly resolves a cast for caster.
func (z *Instance) CastSpell(casterGUID world.GUID, spellID uint32, targetGUID world.GUID, nowMS int64) {
	caster, ok := z.entities[casterGUID]
	if !ok || caster.Dead() {
		return
	}
	if _, busy := z.casts[casterGUID]; busy {
		z.sendTo(casterGUID, castResultPacket(spellID, castResultInvalid))
		return
	}
	sp := z.content.GetSpell(spellID)
	target := z.resolveTarget(caster, sp, targetGUID)
	if err := z.spells.CanCast(caster, target, sp, nowMS); err != nil {
		z.sendTo(casterGUID, castResultPacket(spellID, castResultFor(err)))
		return
	}
	if sp.CastTimeMS <= 0 {
		z.completeCast(caster, sp, target, nowMS)
		return
	}
	z.casts[casterGUID] = spell.NewCast(sp, targetGUID, nowMS)
	z.broadcastPacket(caster.Position, z.cfg.YellRange, 0, spellStartPacket(casterGUID, spellID, targetGUID, sp.CastTimeMS))
}

// CancelCast aborts the caster's own in-progress cast.
func (z *Instance) CancelCast(casterGUID world.GUID) {
	cast, ok := z.casts[casterGUID]
	if !ok {
		return
	}
	delete(z.casts, casterGUID)
	z.sendTo(casterGUID, castResultPacket(cast.SpellID, castResultInterrupted))
}

func (z *Instance) resolveTarget(caster *world.Entity, sp *data.SpellTemplate, targetGUID world.GUID) *world.Entity {
	if sp == nil || sp.TargetType == "self" {
		return caster
	}
	if t, ok := z.entities[targetGUID]; ok {
		return t
	}
	return nil
}

func castResultFor(err error) castResultCode {
	switch err {
	case nil:
		return castResultOK
	case spell.ErrOnCooldown:
		return castResultOnCooldown
	case spell.ErrOutOfRange:
		return castResultOutOfRange
	case spell.ErrTargetDead:
		return castResultTargetDead
	default:
		return castResultInvalid
	}
}

// completeCast applies the spell's effects in declared order and starts
// cooldowns. Called for instant casts and when a cast timer elapses.
func (z *Instance) completeCast(caster *world.Entity, sp *data.SpellTemplate, target *world.Entity, nowMS int64) {
	// Revalidate: the target may have died or left range during the cast.
	if err := z.spells.CanCast(caster, target, sp, nowMS); err != nil {
		z.sendTo(caster.GUID, castResultPacket(sp.ID, castResultFor(err)))
		return
	}
	z.spells.StartCooldowns(caster, sp, nowMS)
	z.broadcastPacket(caster.Position, z.cfg.YellRange, 0, spellGoPacket(caster.GUID, sp.ID, target.GUID))

	for _, eff := range sp.Effects {
		switch eff.Kind {
		case "damage":
			dmg, _ := z.spells.ComputeDamage(caster, target, eff, false, nowMS)
			z.DealDamage(caster.GUID, target, dmg, nowMS)
		case "heal":
			amount, _ := z.spells.ComputeHeal(caster, eff, false, nowMS)
			if target.ApplyHeal(amount) > 0 {
				z.broadcastPacket(target.Position, z.cfg.YellRange, 0, entityHealthPacket(target, 0, 0))
			}
		case "absorb":
			z.applyBuff(caster, target, sp, eff, world.BuffAbsorb, nowMS)
		case "stat":
			z.applyBuff(caster, target, sp, eff, world.BuffStatModifier, nowMS)
		case "dot":
			z.applyBuff(caster, target, sp, eff, world.BuffPeriodicDamage, nowMS)
		case "hot":
			z.applyBuff(caster, target, sp, eff, world.BuffPeriodicHeal, nowMS)
		default:
			z.log.Warn("spell effect kind unhandled", zap.Uint32("spell", sp.ID), zap.String("kind", eff.Kind))
		}
		if target.Dead() {
			break
		}
	}
}

func (z *Instance) applyBuff(caster, target *world.Entity, sp *data.SpellTemplate, eff data.SpellEffectDef, kind world.BuffKind, nowMS int64) {
	z.buffSeq++
	b := world.BuffDebuff{
		ID:             z.buffSeq,
		SpellID:        sp.ID,
		Kind:           kind,
		Amount:         eff.Amount,
		Stat:           data.Stat(eff.Stat),
		DurationMS:     eff.DurationMS,
		Debuff:         kind == world.BuffPeriodicDamage || eff.Amount < 0,
		CasterGUID:     caster.GUID,
		TickIntervalMS: eff.TickIntervalMS,
	}
	target.Effects.Apply(b, nowMS)
	z.broadcastPacket(target.Position, z.cfg.YellRange, 0, buffApplyPacket(target.GUID, b))
}

// ─── chat ──────────────────────────────────────────────────────────

// Say broadcasts range-bounded chat. The speaker hears itself, so nobody
// is skipped.
func (z *Instance) Say(from world.GUID, channel uint8, text string, radius float32) {
	e, ok := z.entities[from]
	if !ok {
		return
	}
	z.broadcastPacket(e.Position, radius, 0, chatPacket(from, e.Name, channel, text))
}

// NpcInteract makes a friendly creature greet the interacting player.
// Hostile, dead or distant creatures ignore the poke.
func (z *Instance) NpcInteract(player, npc world.GUID, sayRange float32) {
	p, ok := z.entities[player]
	if !ok {
		return
	}
	n, ok := z.entities[npc]
	if !ok || n.Dead() || p.Position.Dist(n.Position) > sayRange {
		return
	}
	if z.content.Factions().CreatureHostileToPlayer(n.FactionID, p.PlayerFaction) {
		return
	}
	z.broadcastPacket(n.Position, sayRange, 0, chatPacket(npc, n.Name, 0, "Greetings, "+p.Name+"."))
}

// ForEachPlayer visits every resident player entity. Zone-goroutine only;
// the periodic save sweep posts itself here.
func (z *Instance) ForEachPlayer(fn func(e *world.Entity)) {
	for _, e := range z.entities {
		if e.Kind == world.KindPlayer {
			fn(e)
		}
	}
}

// ─── tick ──────────────────────────────────────────────────────────

func (z *Instance) tick(nowMS int64) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	z.tickCreatures(nowMS)
	z.tickCasts(nowMS)
	z.tickEffects(nowMS)
	z.tickCorpses(nowMS)
	z.tickRespawns(nowMS)
}

func (z *Instance) tickCreatures(nowMS int64) {
	for guid, brain := range z.brains {
		e, ok := z.entities[guid]
		if !ok {
			delete(z.brains, guid)
			continue
		}
		tmpl := z.templateFor(guid)
		if tmpl == nil {
			continue
		}
		cfg := ai.Config{
			AggroRange:    tmpl.AggroRange,
			LeashRange:    tmpl.LeashRange,
			AttackRange:   tmpl.AttackRange,
			AttackSpeedMS: tmpl.AttackSpeedMS,
		}
		if cfg.AggroRange <= 0 {
			cfg.AggroRange = z.cfg.AggroRange
		}
		if cfg.LeashRange <= 0 {
			cfg.LeashRange = z.cfg.LeashRange
		}

		if brain.CheckLeash(e.Position, cfg.LeashRange) {
			brain.BeginEvade()
			// Evading creatures reset to full health so they cannot be
			// leash-kited to death.
			e.Health = e.MaxHealth
			z.broadcastPacket(e.Position, z.cfg.YellRange, 0, entityHealthPacket(e, 0, 0))
		}

		if brain.State() == ai.StateIdle {
			if target, found := brain.CheckAggro(e.Position, e.FactionID, z.content.Factions(), z.aggroCandidates(e.Position, cfg.AggroRange), cfg.AggroRange); found {
				brain.AddThreat(target, 1)
				brain.EnterCombat(target, nowMS)
				z.onAggro(e, target)
			}
		}

		switch action := brain.Tick(cfg, nowMS); action.Kind {
		case ai.ActionAttack:
			z.creatureAttack(e, brain, tmpl, action.Target, nowMS)
		case ai.ActionMoveTo:
			z.moveEntity(e, stepToward(e.Position, action.Dest, chaseStep))
			if e.Position.Dist(brain.SpawnPos()) < 0.5 {
				brain.ArrivedHome()
			}
		}
	}
}

func (z *Instance) aggroCandidates(center world.Vec3, radius float32) []ai.Candidate {
	var out []ai.Candidate
	for _, guid := range z.grid.QueryRange(center, radius) {
		if guid.Kind() != world.KindPlayer {
			continue
		}
		e := z.entities[guid]
		if e == nil {
			continue
		}
		out = append(out, ai.Candidate{
			GUID:    guid,
			Pos:     e.Position,
			Faction: e.PlayerFaction,
			Dead:    e.Dead(),
		})
	}
	return out
}

func (z *Instance) creatureAttack(e *world.Entity, brain *ai.Brain, tmpl *data.CreatureTemplate, targetGUID world.GUID, nowMS int64) {
	target, ok := z.entities[targetGUID]
	if !ok || target.Dead() {
		brain.DropTarget(targetGUID)
		return
	}
	attackRange := tmpl.AttackRange
	if attackRange <= 0 {
		attackRange = 5
	}
	if action := brain.CombatAction(e.Position, target.Position, attackRange); action.Kind == ai.ActionChase {
		z.moveEntity(e, stepToward(e.Position, target.Position, chaseStep))
		return
	}
	z.DealDamage(e.GUID, target, tmpl.AttackDamage, nowMS)
}

// stepToward advances from toward to by at most step units.
func stepToward(from, to world.Vec3, step float32) world.Vec3 {
	d := from.Dist(to)
	if d <= step || d == 0 {
		return to
	}
	f := step / d
	return world.Vec3{
		X: from.X + (to.X-from.X)*f,
		Y: from.Y + (to.Y-from.Y)*f,
		Z: from.Z + (to.Z-from.Z)*f,
	}
}

func (z *Instance) tickCasts(nowMS int64) {
	for guid, cast := range z.casts {
		if !cast.Complete(nowMS) {
			continue
		}
		delete(z.casts, guid)
		caster, ok := z.entities[guid]
		if !ok || caster.Dead() {
			continue
		}
		sp := z.content.GetSpell(cast.SpellID)
		if sp == nil {
			continue
		}
		z.completeCast(caster, sp, z.resolveTarget(caster, sp, cast.TargetGUID), nowMS)
	}
}

// periodicWork is one due DoT/HoT application, collected before applying
// so effect callbacks never mutate the effect container mid-iteration.
type periodicWork struct {
	target *world.Entity
	kind   world.BuffKind
	caster world.GUID
	amount uint32
	count  int
}

func (z *Instance) tickEffects(nowMS int64) {
	var work []periodicWork
	for _, e := range z.entities {
		// Collect owed ticks before pruning: an effect expiring this tick
		// still has its final application due.
		if !e.Dead() {
			e.Effects.Periodic(func(b *world.BuffDebuff) {
				if pending := spell.PendingTicks(b, nowMS); pending > 0 {
					work = append(work, periodicWork{
						target: e,
						kind:   b.Kind,
						caster: b.CasterGUID,
						amount: uint32(b.Amount),
						count:  pending,
					})
				}
			})
		}
		for _, id := range e.Effects.Expired(nowMS) {
			e.Effects.Remove(id)
			z.broadcastPacket(e.Position, z.cfg.YellRange, 0, buffRemovePacket(e.GUID, id))
		}
	}
	for _, w := range work {
		for i := 0; i < w.count && !w.target.Dead(); i++ {
			switch w.kind {
			case world.BuffPeriodicDamage:
				z.DealDamage(w.caster, w.target, w.amount, nowMS)
			case world.BuffPeriodicHeal:
				if w.target.ApplyHeal(w.amount) > 0 {
					z.broadcastPacket(w.target.Position, z.cfg.YellRange, 0, entityHealthPacket(w.target, 0, 0))
				}
			}
		}
	}
}

func (z *Instance) tickCorpses(nowMS int64) {
	for guid, despawnAt := range z.corpseDespawn {
		if despawnAt <= nowMS {
			z.RemoveEntity(guid)
		}
	}
}

func (z *Instance) tickRespawns(nowMS int64) {
	if z.draining {
		return
	}
	remaining := z.respawns[:0]
	for _, r := range z.respawns {
		if r.dueAt <= nowMS {
			z.spawnCreature(r.spawn)
		} else {
			remaining = append(remaining, r)
		}
	}
	z.respawns = remaining
}
