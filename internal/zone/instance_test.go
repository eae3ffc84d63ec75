package zone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nexusgo/server/internal/ai"
	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

type fakeConn struct {
	packets []wirePacket
	closed  bool
}

func (c *fakeConn) SendPacket(opcode uint16, payload []byte) {
	c.packets = append(c.packets, wirePacket{packet.Opcode(opcode), payload})
}

func (c *fakeConn) Disconnect(reason string) { c.closed = true }

func (c *fakeConn) count(op packet.Opcode) int {
	n := 0
	for _, p := range c.packets {
		if p.op == op {
			n++
		}
	}
	return n
}

func (c *fakeConn) last(op packet.Opcode) ([]byte, bool) {
	for i := len(c.packets) - 1; i >= 0; i-- {
		if c.packets[i].op == op {
			return c.packets[i].payload, true
		}
	}
	return nil, false
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		TickRate:      100 * time.Millisecond,
		GridCellSize:  50,
		CorpseTTL:     2 * time.Minute,
		GCD:           1000 * time.Millisecond,
		AggroRange:    10,
		LeashRange:    40,
		RespawnDelay:  30 * time.Second,
		CastPushback:  1,
		CritChance:    0,
		SayRange:      30,
		YellRange:     100,
		EmoteRange:    30,
		MaxChatLength: 500,
	}
}

func testContent() *data.Store {
	return data.NewStoreForTest(
		[]data.CreatureTemplate{
			{
				ID: 100, Name: "Razortail Skurge", Level: 3, MaxHealth: 50,
				FactionID: 2, AggroRange: 10, LeashRange: 40, AttackRange: 3,
				AttackSpeedMS: 2000, AttackDamage: 8, XPReward: 60, LootTableID: 1,
			},
			{
				ID: 101, Name: "Protostar Clerk", Level: 5, MaxHealth: 80,
				FactionID: 1, AttackSpeedMS: 2000,
			},
		},
		[]data.SpellTemplate{
			{
				ID: 1, Name: "Bolt", Range: 30, TargetType: "enemy",
				CooldownMS: 5000, TriggersGCD: true,
				Effects: []data.SpellEffectDef{{Kind: "damage", Amount: 100, School: "magic"}},
			},
			{
				ID: 2, Name: "Charged Shot", Range: 30, TargetType: "enemy",
				CastTimeMS: 1500,
				Effects:    []data.SpellEffectDef{{Kind: "damage", Amount: 40, School: "magic"}},
			},
		},
		nil,
		[]data.LootTable{
			{ID: 1, Entries: []data.LootEntry{{ItemID: 500, MinQty: 1, MaxQty: 1, Chance: 1}}},
		},
		map[uint32]world.Disposition{
			1: world.DispositionFriendly,
			2: world.DispositionHostile,
		},
	)
}

// newTestZone builds an instance without launching the actor goroutine;
// tests drive it synchronously.
func newTestZone(t *testing.T) (*Instance, *world.Manager) {
	t.Helper()
	mgr := world.NewManager()
	z := New(world.ZoneKey{WorldID: 1}, nil, testGameConfig(), testContent(), mgr, nil, zaptest.NewLogger(t))
	return z, mgr
}

func addTestPlayer(t *testing.T, z *Instance, mgr *world.Manager, name string, pos world.Vec3) (*world.Entity, *fakeConn) {
	t.Helper()
	guid := mgr.GenerateGUID(world.KindPlayer)
	e := world.NewEntity(guid, world.KindPlayer, pos, 100, 3)
	e.Name = name
	conn := &fakeConn{}
	require.NoError(t, mgr.Register(&world.Session{
		ID:            uint64(guid),
		AccountID:     uint64(guid) + 1000,
		CharacterName: name,
		EntityGUID:    guid,
		ZoneID:        1,
		InWorld:       true,
		Conn:          conn,
	}))
	require.True(t, z.AddPlayer(e))
	return e, conn
}

func onlyCreatureGUID(t *testing.T, z *Instance) world.GUID {
	t.Helper()
	require.Len(t, z.creatures, 1)
	for guid := range z.creatures {
		return guid
	}
	return 0
}

func TestSayStaysWithinRange(t *testing.T) {
	z, mgr := newTestZone(t)
	speaker, speakerConn := addTestPlayer(t, z, mgr, "Speaker", world.Vec3{})
	_, nearConn := addTestPlayer(t, z, mgr, "Near", world.Vec3{X: 25})
	_, farConn := addTestPlayer(t, z, mgr, "Far", world.Vec3{X: 50})

	z.Say(speaker.GUID, 0, "hello", 30)
	assert.Equal(t, 1, speakerConn.count(packet.ServerChat), "speaker hears itself")
	assert.Equal(t, 1, nearConn.count(packet.ServerChat))
	assert.Equal(t, 0, farConn.count(packet.ServerChat))
}

func TestYellReachesFarther(t *testing.T) {
	z, mgr := newTestZone(t)
	speaker, _ := addTestPlayer(t, z, mgr, "Speaker", world.Vec3{})
	_, farConn := addTestPlayer(t, z, mgr, "Far", world.Vec3{X: 50})

	z.Say(speaker.GUID, 1, "HELLO", 100)
	assert.Equal(t, 1, farConn.count(packet.ServerChat))
}

func TestAddPlayerBackfillsExistingEntities(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 10})
	addTestPlayer(t, z, mgr, "First", world.Vec3{})

	_, conn := addTestPlayer(t, z, mgr, "Second", world.Vec3{X: 1})
	// Newcomer sees the creature and the first player.
	assert.Equal(t, 2, conn.count(packet.ServerEntityCreate))
}

func TestHandleMoveBroadcastsAndSkipsMover(t *testing.T) {
	z, mgr := newTestZone(t)
	mover, moverConn := addTestPlayer(t, z, mgr, "Mover", world.Vec3{})
	_, watcherConn := addTestPlayer(t, z, mgr, "Watcher", world.Vec3{X: 10})

	z.HandleMove(mover.GUID, world.Vec3{X: 5}, 1.2)
	assert.Equal(t, world.Vec3{X: 5}, mover.Position)
	assert.Equal(t, float32(1.2), mover.Rotation)
	assert.Equal(t, 1, watcherConn.count(packet.ServerEntityCommand))
	assert.Equal(t, 0, moverConn.count(packet.ServerEntityCommand))
}

func TestHandleMoveDropsImplausibleJump(t *testing.T) {
	z, mgr := newTestZone(t)
	mover, _ := addTestPlayer(t, z, mgr, "Mover", world.Vec3{})

	z.HandleMove(mover.GUID, world.Vec3{X: 500}, 0)
	assert.Equal(t, world.Vec3{}, mover.Position, "teleport-sized move rejected")
}

func TestDamageInterruptsCast(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	caster, conn := addTestPlayer(t, z, mgr, "Caster", world.Vec3{})
	creature := onlyCreatureGUID(t, z)

	z.CastSpell(caster.GUID, 2, creature, 0)
	require.Contains(t, z.casts, caster.GUID)

	z.DealDamage(creature, caster, 5, 100)
	assert.NotContains(t, z.casts, caster.GUID)

	payload, ok := conn.last(packet.ServerSpellCastResult)
	require.True(t, ok)
	r := packet.NewReader(payload)
	assert.Equal(t, uint32(2), r.ReadUint32())
	assert.Equal(t, byte(castResultInterrupted), r.ReadByte())
}

func TestInstantCastCooldownRejected(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	caster, conn := addTestPlayer(t, z, mgr, "Caster", world.Vec3{})
	creature := onlyCreatureGUID(t, z)

	z.CastSpell(caster.GUID, 1, creature, 0)
	assert.Equal(t, 1, conn.count(packet.ServerSpellGo))

	// The creature died to the 100-damage bolt, but the cooldown is the
	// first gate checked on the recast.
	z.CastSpell(caster.GUID, 1, creature, 100)
	payload, ok := conn.last(packet.ServerSpellCastResult)
	require.True(t, ok)
	r := packet.NewReader(payload)
	r.ReadUint32()
	assert.Equal(t, byte(castResultOnCooldown), r.ReadByte())
}

func TestCreatureDeathXPCorpseRespawn(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5, RespawnDelayMS: 10000})
	killer, conn := addTestPlayer(t, z, mgr, "Killer", world.Vec3{})
	creature := onlyCreatureGUID(t, z)
	creatureEnt, _ := z.Entity(creature)

	z.DealDamage(killer.GUID, creatureEnt, 50, 1000)

	// Same-level kill grants the full reward.
	assert.Equal(t, uint64(60), killer.XP)
	assert.Equal(t, 1, conn.count(packet.ServerXPGain))
	assert.Equal(t, 1, conn.count(packet.ServerEntityDeath))

	// The creature is gone; a lootable corpse took its place.
	_, alive := z.Entity(creature)
	assert.False(t, alive)
	var corpse *world.Entity
	for _, e := range z.entities {
		if e.Kind == world.KindCorpse {
			corpse = e
		}
	}
	require.NotNil(t, corpse)
	assert.Equal(t, creature, corpse.OwnerGUID)
	require.NotNil(t, corpse.Loot)

	// Per-spawn respawn delay wins over the config default.
	require.Len(t, z.respawns, 1)
	assert.Equal(t, int64(11000), z.respawns[0].dueAt)

	z.tickRespawns(10999)
	assert.Empty(t, z.creatures)
	z.tickRespawns(11000)
	assert.Len(t, z.creatures, 1)
}

func TestKillCanLevelUp(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	killer, conn := addTestPlayer(t, z, mgr, "Killer", world.Vec3{})
	killer.Level = 1
	killer.XP = 350
	creature := onlyCreatureGUID(t, z)
	creatureEnt, _ := z.Entity(creature)

	z.DealDamage(killer.GUID, creatureEnt, 50, 1000)

	assert.Equal(t, uint16(2), killer.Level)
	assert.Equal(t, uint64(10), killer.XP, "350+60 rolls past the 400 threshold")
	assert.Equal(t, 1, conn.count(packet.ServerLevelUp))
}

func TestLootExactlyOnce(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	killer, conn := addTestPlayer(t, z, mgr, "Killer", world.Vec3{})
	creatureEnt, _ := z.Entity(onlyCreatureGUID(t, z))
	z.DealDamage(killer.GUID, creatureEnt, 50, 1000)

	var corpseGUID world.GUID
	for guid, e := range z.entities {
		if e.Kind == world.KindCorpse {
			corpseGUID = guid
		}
	}
	require.NotZero(t, corpseGUID)

	readCount := func() int {
		payload, ok := conn.last(packet.ServerLootResult)
		require.True(t, ok)
		r := packet.NewReader(payload)
		r.ReadUint64()
		return int(r.ReadUint(8))
	}

	z.HandleLoot(killer.GUID, corpseGUID)
	assert.Equal(t, 1, readCount())

	z.HandleLoot(killer.GUID, corpseGUID)
	assert.Equal(t, 0, readCount(), "second take yields an empty list")
}

func TestCorpseDespawn(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	killer, _ := addTestPlayer(t, z, mgr, "Killer", world.Vec3{})
	creatureEnt, _ := z.Entity(onlyCreatureGUID(t, z))
	z.DealDamage(killer.GUID, creatureEnt, 50, 1000)
	require.Len(t, z.corpseDespawn, 1)

	z.tickCorpses(1000 + z.cfg.CorpseTTL.Milliseconds())
	assert.Empty(t, z.corpseDespawn)
	for _, e := range z.entities {
		assert.NotEqual(t, world.KindCorpse, e.Kind)
	}
}

func TestCreatureAggroChaseAttack(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100})
	player, conn := addTestPlayer(t, z, mgr, "Victim", world.Vec3{X: 5})
	creature := onlyCreatureGUID(t, z)

	// First tick: aggro, then close the 5-unit gap.
	z.tick(2000)
	brain := z.brains[creature]
	assert.Equal(t, ai.StateCombat, brain.State())
	assert.Equal(t, player.GUID, brain.Target())
	assert.GreaterOrEqual(t, conn.count(packet.ServerThreatList), 1)

	// Next swing lands: the creature moved into range last tick.
	z.tick(4000)
	assert.Equal(t, uint32(92), player.Health)
}

func TestCreatureIgnoresDeadPlayers(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100})
	player, _ := addTestPlayer(t, z, mgr, "Ghost", world.Vec3{X: 5})
	player.Health = 0

	z.tick(2000)
	assert.Equal(t, ai.StateIdle, z.brains[onlyCreatureGUID(t, z)].State())
}

func TestLeashEvadeAndReturnHome(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100})
	addTestPlayer(t, z, mgr, "Distant", world.Vec3{X: 200})
	creature := onlyCreatureGUID(t, z)
	e, _ := z.Entity(creature)
	brain := z.brains[creature]

	brain.AddThreat(9999, 10)
	brain.EnterCombat(9999, 0)
	e.Health = 10
	e.Position = world.Vec3{X: 41}
	z.grid.Move(creature, e.Position)

	z.tick(1000)
	assert.Equal(t, ai.StateEvade, brain.State())
	assert.Equal(t, e.MaxHealth, e.Health, "evading creatures heal to full")

	for i := 0; i < 20 && brain.State() == ai.StateEvade; i++ {
		z.tick(int64(2000 + i*100))
	}
	assert.Equal(t, ai.StateIdle, brain.State())
	assert.Equal(t, world.Vec3{}, e.Position)
}

func TestDoTTicksThroughZone(t *testing.T) {
	z, mgr := newTestZone(t)
	attackerGUID := mgr.GenerateGUID(world.KindCreature)
	target, conn := addTestPlayer(t, z, mgr, "Target", world.Vec3{})

	target.Effects.Apply(world.BuffDebuff{
		ID: 1, Kind: world.BuffPeriodicDamage, Amount: 5,
		DurationMS: 5000, TickIntervalMS: 1000, CasterGUID: attackerGUID,
	}, 0)

	z.tickEffects(1000)
	assert.Equal(t, uint32(95), target.Health)

	// Two missed windows coalesce into two applications.
	z.tickEffects(3000)
	assert.Equal(t, uint32(85), target.Health)

	// The expiry tick applies the owed 4000 and 5000 windows before the
	// effect is pruned and announced.
	z.tickEffects(5000)
	assert.Equal(t, uint32(75), target.Health)
	assert.Equal(t, 0, target.Effects.Len())
	assert.GreaterOrEqual(t, conn.count(packet.ServerSpellBuffRemove), 1)
}

func TestDoTAppliesFullTickCountThroughStall(t *testing.T) {
	z, mgr := newTestZone(t)
	attackerGUID := mgr.GenerateGUID(world.KindCreature)
	target, _ := addTestPlayer(t, z, mgr, "Target", world.Vec3{})

	target.Effects.Apply(world.BuffDebuff{
		ID: 1, Kind: world.BuffPeriodicDamage, Amount: 5,
		DurationMS: 5000, TickIntervalMS: 1000, CasterGUID: attackerGUID,
	}, 0)

	// One tick pass landing exactly at expiry still owes all five
	// applications: duration / interval, the last one at the boundary.
	z.tickEffects(5000)
	assert.Equal(t, uint32(75), target.Health)
	assert.Equal(t, 0, target.Effects.Len())
}

func TestNpcInteractGreeting(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 101, X: 5})
	player, conn := addTestPlayer(t, z, mgr, "Visitor", world.Vec3{})
	npc := onlyCreatureGUID(t, z)

	z.NpcInteract(player.GUID, npc, 30)
	payload, ok := conn.last(packet.ServerChat)
	require.True(t, ok)
	r := packet.NewReader(payload)
	r.ReadByte()
	assert.Equal(t, uint64(npc), r.ReadUint64())
	name, err := r.ReadStringPacked()
	require.NoError(t, err)
	assert.Equal(t, "Protostar Clerk", name)
	text, err := r.ReadStringPacked()
	require.NoError(t, err)
	assert.Contains(t, text, "Visitor")
}

func TestNpcInteractHostileIgnored(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100, X: 5})
	player, conn := addTestPlayer(t, z, mgr, "Visitor", world.Vec3{})

	before := conn.count(packet.ServerChat)
	z.NpcInteract(player.GUID, onlyCreatureGUID(t, z), 30)
	assert.Equal(t, before, conn.count(packet.ServerChat))
}

func TestDrainingRejectsNewPlayers(t *testing.T) {
	z, mgr := newTestZone(t)
	z.draining = true

	guid := mgr.GenerateGUID(world.KindPlayer)
	e := world.NewEntity(guid, world.KindPlayer, world.Vec3{}, 100, 1)
	assert.False(t, z.AddPlayer(e))
	_, ok := z.Entity(guid)
	assert.False(t, ok)
}

func TestRemoveEntityDropsFromBrains(t *testing.T) {
	z, mgr := newTestZone(t)
	z.spawnCreature(data.SpawnEntry{CreatureID: 100})
	player, _ := addTestPlayer(t, z, mgr, "Leaver", world.Vec3{X: 5})
	brain := z.brains[onlyCreatureGUID(t, z)]
	brain.AddThreat(player.GUID, 10)
	brain.EnterCombat(player.GUID, 0)

	z.RemoveEntity(player.GUID)
	assert.Equal(t, ai.StateIdle, brain.State())
	assert.Equal(t, world.GUID(0), brain.Target())
}
