package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPToNext(t *testing.T) {
	assert.Equal(t, uint64(400), XPToNext(1))
	assert.Equal(t, uint64(500), XPToNext(2))
	assert.Equal(t, uint64(1300), XPToNext(10))
}

func TestXPFromKillLevelGap(t *testing.T) {
	// Equal or higher-level victims grant the full reward.
	assert.Equal(t, uint64(100), XPFromKill(5, 5, 100))
	assert.Equal(t, uint64(100), XPFromKill(5, 9, 100))

	// Each level of gap shaves 10%.
	assert.Equal(t, uint64(90), XPFromKill(6, 5, 100))
	assert.Equal(t, uint64(50), XPFromKill(10, 5, 100))
	assert.Equal(t, uint64(10), XPFromKill(14, 5, 100))

	// Ten or more levels down is worthless.
	assert.Equal(t, uint64(0), XPFromKill(15, 5, 100))
	assert.Equal(t, uint64(0), XPFromKill(50, 5, 100))
}

func TestCheckLevelUpSingle(t *testing.T) {
	level, remaining, leveled := CheckLevelUp(1, 450)
	assert.Equal(t, uint16(2), level)
	assert.Equal(t, uint64(50), remaining)
	assert.True(t, leveled)
}

func TestCheckLevelUpExactThreshold(t *testing.T) {
	level, remaining, leveled := CheckLevelUp(1, 400)
	assert.Equal(t, uint16(2), level)
	assert.Equal(t, uint64(0), remaining)
	assert.True(t, leveled)
}

func TestCheckLevelUpMultiple(t *testing.T) {
	// 400 + 500 = 900 consumes two levels; 50 spills over.
	level, remaining, leveled := CheckLevelUp(1, 950)
	assert.Equal(t, uint16(3), level)
	assert.Equal(t, uint64(50), remaining)
	assert.True(t, leveled)
}

func TestCheckLevelUpNoChange(t *testing.T) {
	level, remaining, leveled := CheckLevelUp(3, 599)
	assert.Equal(t, uint16(3), level)
	assert.Equal(t, uint64(599), remaining)
	assert.False(t, leveled)
}
