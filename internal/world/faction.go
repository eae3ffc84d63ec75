package world

// PlayerFaction is one of the two playable sides.
type PlayerFaction uint8

const (
	FactionExile PlayerFaction = iota
	FactionDominion
)

// Disposition is an NPC faction's stance toward players.
type Disposition uint8

const (
	DispositionNeutral Disposition = iota
	DispositionFriendly
	DispositionHostile
	// DispositionExile / DispositionDominion mark NPC factions aligned with
	// one player side: hostile to the other side only.
	DispositionExile
	DispositionDominion
)

// FactionTable maps content faction IDs to dispositions. Loaded once at
// startup from the content store; read-only afterwards, so it is safe to
// share across zone goroutines.
type FactionTable struct {
	dispositions map[uint32]Disposition
}

func NewFactionTable(dispositions map[uint32]Disposition) *FactionTable {
	return &FactionTable{dispositions: dispositions}
}

// Disposition looks up a faction ID. Unknown IDs default to neutral — an
// unconfigured creature must never auto-aggro.
func (t *FactionTable) Disposition(factionID uint32) Disposition {
	d, ok := t.dispositions[factionID]
	if !ok {
		return DispositionNeutral
	}
	return d
}

// CreatureHostileToPlayer reports whether a creature of the given faction
// attacks players of the given side.
func (t *FactionTable) CreatureHostileToPlayer(creatureFactionID uint32, player PlayerFaction) bool {
	switch t.Disposition(creatureFactionID) {
	case DispositionHostile:
		return true
	case DispositionExile:
		return player == FactionDominion
	case DispositionDominion:
		return player == FactionExile
	default:
		return false
	}
}

// PlayersHostile reports whether two player factions may fight each other.
func PlayersHostile(a, b PlayerFaction) bool {
	return a != b
}
