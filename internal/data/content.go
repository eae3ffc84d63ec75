// Package data is the read-only content store: static game templates
// loaded from YAML once at startup and shared across all goroutines
// without coordination.
package data

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nexusgo/server/internal/world"
)

// CreatureTemplate holds static data for a creature type.
type CreatureTemplate struct {
	ID            uint32  `yaml:"id"`
	Name          string  `yaml:"name"`
	Level         uint16  `yaml:"level"`
	MaxHealth     uint32  `yaml:"max_health"`
	FactionID     uint32  `yaml:"faction_id"`
	DisplayInfo   uint32  `yaml:"display_info"`
	AggroRange    float32 `yaml:"aggro_range"`
	LeashRange    float32 `yaml:"leash_range"`
	AttackRange   float32 `yaml:"attack_range"`
	AttackSpeedMS int64   `yaml:"attack_speed_ms"`
	AttackDamage  uint32  `yaml:"attack_damage"`
	XPReward      uint32  `yaml:"xp_reward"`
	LootTableID   uint32  `yaml:"loot_table_id"`
	ScriptName    string  `yaml:"script"` // lua encounter hook, empty = none
	Armor         float32 `yaml:"armor"`
}

// SpellEffectDef is one ordered effect of a spell.
type SpellEffectDef struct {
	Kind           string  `yaml:"kind"` // damage, heal, absorb, stat, dot, hot
	Amount         int64   `yaml:"amount"`
	ScalingFactor  float64 `yaml:"scaling_factor"`
	ScalingStat    string  `yaml:"scaling_stat"`
	School         string  `yaml:"school"` // physical, magic, tech
	Stat           string  `yaml:"stat"`
	DurationMS     int64   `yaml:"duration_ms"`
	TickIntervalMS int64   `yaml:"tick_interval_ms"`
}

// SpellTemplate holds static data for one castable spell.
type SpellTemplate struct {
	ID          uint32           `yaml:"id"`
	Name        string           `yaml:"name"`
	CastTimeMS  int64            `yaml:"cast_time_ms"`
	CooldownMS  int64            `yaml:"cooldown_ms"`
	Range       float32          `yaml:"range"`
	TargetType  string           `yaml:"target_type"` // self, enemy, ally
	TriggersGCD bool             `yaml:"triggers_gcd"`
	Effects     []SpellEffectDef `yaml:"effects"`
}

// ItemTemplate holds static data for an item.
type ItemTemplate struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Quality  uint8  `yaml:"quality"`
	StackMax uint32 `yaml:"stack_max"`
}

// ZoneTemplate describes one world map.
type ZoneTemplate struct {
	ID           uint32       `yaml:"id"`
	Name         string       `yaml:"name"`
	GridCellSize float32      `yaml:"grid_cell_size"` // 0 = server default
	Spawns       []SpawnEntry `yaml:"spawns"`
}

// SpawnEntry places creatures in a zone.
type SpawnEntry struct {
	CreatureID     uint32  `yaml:"creature_id"`
	X              float32 `yaml:"x"`
	Y              float32 `yaml:"y"`
	Z              float32 `yaml:"z"`
	Rotation       float32 `yaml:"rotation"`
	Count          int     `yaml:"count"`
	RespawnDelayMS int64   `yaml:"respawn_delay_ms"`
}

// LootEntry is one candidate drop in a loot table.
type LootEntry struct {
	ItemID uint32  `yaml:"item_id"`
	MinQty uint32  `yaml:"min_qty"`
	MaxQty uint32  `yaml:"max_qty"`
	Chance float64 `yaml:"chance"` // 0..1
}

// LootTable groups candidate drops under one ID.
type LootTable struct {
	ID      uint32      `yaml:"id"`
	Entries []LootEntry `yaml:"entries"`
}

// FactionEntry maps a content faction ID to a disposition.
type FactionEntry struct {
	ID          uint32 `yaml:"id"`
	Disposition string `yaml:"disposition"` // neutral, friendly, hostile, exile, dominion
}

// Store is the assembled content store. Everything is indexed for O(1)
// lookup and never mutated after Load, so concurrent readers need no
// locks.
type Store struct {
	creatures map[uint32]*CreatureTemplate
	spells    map[uint32]*SpellTemplate
	items     map[uint32]*ItemTemplate
	zones     map[uint32]*ZoneTemplate
	loot      map[uint32]*LootTable
	factions  *world.FactionTable
}

type creatureFile struct {
	Creatures []CreatureTemplate `yaml:"creatures"`
}
type spellFile struct {
	Spells []SpellTemplate `yaml:"spells"`
}
type itemFile struct {
	Items []ItemTemplate `yaml:"items"`
}
type zoneFile struct {
	Zones []ZoneTemplate `yaml:"zones"`
}
type lootFile struct {
	Tables []LootTable `yaml:"loot_tables"`
}
type factionFile struct {
	Factions []FactionEntry `yaml:"factions"`
}

// Load reads every content table from dir. Missing files are fatal — a
// world server without creatures or spells is misconfigured, not degraded.
func Load(dir string) (*Store, error) {
	s := &Store{
		creatures: make(map[uint32]*CreatureTemplate),
		spells:    make(map[uint32]*SpellTemplate),
		items:     make(map[uint32]*ItemTemplate),
		zones:     make(map[uint32]*ZoneTemplate),
		loot:      make(map[uint32]*LootTable),
	}

	var cf creatureFile
	if err := loadYAML(filepath.Join(dir, "creatures.yaml"), &cf); err != nil {
		return nil, err
	}
	for i := range cf.Creatures {
		c := &cf.Creatures[i]
		s.creatures[c.ID] = c
	}

	var sf spellFile
	if err := loadYAML(filepath.Join(dir, "spells.yaml"), &sf); err != nil {
		return nil, err
	}
	for i := range sf.Spells {
		sp := &sf.Spells[i]
		s.spells[sp.ID] = sp
	}

	var itf itemFile
	if err := loadYAML(filepath.Join(dir, "items.yaml"), &itf); err != nil {
		return nil, err
	}
	for i := range itf.Items {
		it := &itf.Items[i]
		s.items[it.ID] = it
	}

	var zf zoneFile
	if err := loadYAML(filepath.Join(dir, "zones.yaml"), &zf); err != nil {
		return nil, err
	}
	for i := range zf.Zones {
		z := &zf.Zones[i]
		s.zones[z.ID] = z
	}

	var lf lootFile
	if err := loadYAML(filepath.Join(dir, "loot_tables.yaml"), &lf); err != nil {
		return nil, err
	}
	for i := range lf.Tables {
		t := &lf.Tables[i]
		s.loot[t.ID] = t
	}

	var ff factionFile
	if err := loadYAML(filepath.Join(dir, "factions.yaml"), &ff); err != nil {
		return nil, err
	}
	dispositions := make(map[uint32]world.Disposition, len(ff.Factions))
	for _, f := range ff.Factions {
		dispositions[f.ID] = parseDisposition(f.Disposition)
	}
	s.factions = world.NewFactionTable(dispositions)

	return s, nil
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func parseDisposition(s string) world.Disposition {
	switch s {
	case "friendly":
		return world.DispositionFriendly
	case "hostile":
		return world.DispositionHostile
	case "exile":
		return world.DispositionExile
	case "dominion":
		return world.DispositionDominion
	default:
		return world.DispositionNeutral
	}
}

// NewStoreForTest assembles a store from in-memory tables. Test seam.
func NewStoreForTest(creatures []CreatureTemplate, spells []SpellTemplate, zones []ZoneTemplate, loot []LootTable, dispositions map[uint32]world.Disposition) *Store {
	s := &Store{
		creatures: make(map[uint32]*CreatureTemplate),
		spells:    make(map[uint32]*SpellTemplate),
		items:     make(map[uint32]*ItemTemplate),
		zones:     make(map[uint32]*ZoneTemplate),
		loot:      make(map[uint32]*LootTable),
		factions:  world.NewFactionTable(dispositions),
	}
	for i := range creatures {
		s.creatures[creatures[i].ID] = &creatures[i]
	}
	for i := range spells {
		s.spells[spells[i].ID] = &spells[i]
	}
	for i := range zones {
		s.zones[zones[i].ID] = &zones[i]
	}
	for i := range loot {
		s.loot[loot[i].ID] = &loot[i]
	}
	return s
}

// GetCreatureTemplate returns the template for id, nil if unknown.
func (s *Store) GetCreatureTemplate(id uint32) *CreatureTemplate {
	return s.creatures[id]
}

// GetSpell returns the spell template for id, nil if unknown.
func (s *Store) GetSpell(id uint32) *SpellTemplate {
	return s.spells[id]
}

// GetItem returns the item template for id, nil if unknown.
func (s *Store) GetItem(id uint32) *ItemTemplate {
	return s.items[id]
}

// GetZone returns the zone template for id, nil if unknown.
func (s *Store) GetZone(id uint32) *ZoneTemplate {
	return s.zones[id]
}

// Zones iterates every zone template.
func (s *Store) Zones(fn func(*ZoneTemplate)) {
	for _, z := range s.zones {
		fn(z)
	}
}

// Factions returns the faction disposition table.
func (s *Store) Factions() *world.FactionTable {
	return s.factions
}

// Counts reports table sizes for the startup banner.
func (s *Store) Counts() (creatures, spells, items, zones, loot int) {
	return len(s.creatures), len(s.spells), len(s.items), len(s.zones), len(s.loot)
}

// LootRoll rolls table id and returns the dropped items. Unknown tables
// drop nothing. rng is injected so zone goroutines keep their own source
// and tests can pin the rolls.
func (s *Store) LootRoll(id uint32, rng *rand.Rand) []world.LootItem {
	table := s.loot[id]
	if table == nil {
		return nil
	}
	var out []world.LootItem
	for _, e := range table.Entries {
		if rng.Float64() >= e.Chance {
			continue
		}
		qty := e.MinQty
		if e.MaxQty > e.MinQty {
			qty += uint32(rng.Int63n(int64(e.MaxQty - e.MinQty + 1)))
		}
		if qty > 0 {
			out = append(out, world.LootItem{ItemID: e.ItemID, Qty: qty})
		}
	}
	return out
}

// Stat parses a stat name used in spell definitions.
func Stat(name string) world.Stat {
	switch name {
	case "strength":
		return world.StatStrength
	case "dexterity":
		return world.StatDexterity
	case "technology":
		return world.StatTechnology
	case "magic":
		return world.StatMagic
	case "wisdom":
		return world.StatWisdom
	case "stamina":
		return world.StatStamina
	case "armor":
		return world.StatArmor
	case "crit_rating":
		return world.StatCritRating
	default:
		return world.StatNone
	}
}
