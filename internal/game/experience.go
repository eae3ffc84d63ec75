// Package game holds the pure progression rules: experience awards and
// level-up thresholds.
package game

// XPToNext is the experience required to advance from level to level+1.
func XPToNext(level uint16) uint64 {
	return 300 + 100*uint64(level)
}

// XPFromKill scales the victim's reward by the level gap. Kills at or
// above the killer's level grant the full reward; each level the victim
// trails reduces it by 10%, bottoming out at zero for trivial kills.
func XPFromKill(killerLevel, victimLevel uint16, reward uint32) uint64 {
	if victimLevel >= killerLevel {
		return uint64(reward)
	}
	gap := uint64(killerLevel - victimLevel)
	if gap >= 10 {
		return 0
	}
	return uint64(reward) * (10 - gap) / 10
}

// CheckLevelUp consumes accumulated XP against successive thresholds,
// possibly advancing several levels, and returns the new level, the
// leftover XP, and whether a level-up happened.
func CheckLevelUp(level uint16, xp uint64) (newLevel uint16, remaining uint64, leveled bool) {
	newLevel, remaining = level, xp
	for remaining >= XPToNext(newLevel) {
		remaining -= XPToNext(newLevel)
		newLevel++
		leveled = true
	}
	return newLevel, remaining, leveled
}
