package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgo/server/internal/world"
)

func writeContentDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"creatures.yaml": `
creatures:
  - id: 100
    name: Razortail Skurge
    level: 3
    max_health: 120
    faction_id: 2
    aggro_range: 10
    leash_range: 40
    attack_range: 3
    attack_speed_ms: 2000
    attack_damage: 8
    xp_reward: 60
    loot_table_id: 1
`,
		"spells.yaml": `
spells:
  - id: 1
    name: Bolt
    cast_time_ms: 1500
    cooldown_ms: 5000
    range: 30
    target_type: enemy
    triggers_gcd: true
    effects:
      - kind: damage
        amount: 40
        school: magic
        scaling_stat: magic
        scaling_factor: 0.5
`,
		"items.yaml": `
items:
  - id: 500
    name: Skurge Hide
    quality: 1
    stack_max: 20
`,
		"zones.yaml": `
zones:
  - id: 1
    name: Northern Wilds
    spawns:
      - creature_id: 100
        x: 10
        y: 0
        z: 10
        count: 2
`,
		"loot_tables.yaml": `
loot_tables:
  - id: 1
    entries:
      - item_id: 500
        min_qty: 1
        max_qty: 3
        chance: 1.0
      - item_id: 501
        min_qty: 1
        max_qty: 1
        chance: 0.0
`,
		"factions.yaml": `
factions:
  - id: 2
    disposition: hostile
  - id: 3
    disposition: exile
`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestLoadFullContentDir(t *testing.T) {
	s, err := Load(writeContentDir(t))
	require.NoError(t, err)

	c := s.GetCreatureTemplate(100)
	require.NotNil(t, c)
	assert.Equal(t, "Razortail Skurge", c.Name)
	assert.Equal(t, uint32(120), c.MaxHealth)

	sp := s.GetSpell(1)
	require.NotNil(t, sp)
	require.Len(t, sp.Effects, 1)
	assert.Equal(t, "damage", sp.Effects[0].Kind)
	assert.True(t, sp.TriggersGCD)

	require.NotNil(t, s.GetItem(500))
	z := s.GetZone(1)
	require.NotNil(t, z)
	require.Len(t, z.Spawns, 1)
	assert.Equal(t, 2, z.Spawns[0].Count)

	assert.Equal(t, world.DispositionHostile, s.Factions().Disposition(2))
	assert.Equal(t, world.DispositionNeutral, s.Factions().Disposition(99))

	creatures, spells, items, zones, loot := s.Counts()
	assert.Equal(t, []int{1, 1, 1, 1, 1}, []int{creatures, spells, items, zones, loot})
}

func TestLoadMissingFileFatal(t *testing.T) {
	dir := writeContentDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "spells.yaml")))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestUnknownLookupsReturnNil(t *testing.T) {
	s, err := Load(writeContentDir(t))
	require.NoError(t, err)
	assert.Nil(t, s.GetCreatureTemplate(999))
	assert.Nil(t, s.GetSpell(999))
	assert.Nil(t, s.GetItem(999))
	assert.Nil(t, s.GetZone(999))
}

func TestLootRollRespectsChance(t *testing.T) {
	s, err := Load(writeContentDir(t))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))

	drops := s.LootRoll(1, rng)
	require.Len(t, drops, 1, "chance 1.0 always drops, chance 0.0 never")
	assert.Equal(t, uint32(500), drops[0].ItemID)
	assert.GreaterOrEqual(t, drops[0].Qty, uint32(1))
	assert.LessOrEqual(t, drops[0].Qty, uint32(3))

	assert.Nil(t, s.LootRoll(999, rng), "unknown table drops nothing")
}

func TestStatParsing(t *testing.T) {
	assert.Equal(t, world.StatMagic, Stat("magic"))
	assert.Equal(t, world.StatArmor, Stat("armor"))
	assert.Equal(t, world.StatNone, Stat("charisma"))
}
