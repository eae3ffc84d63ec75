package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCooldownFreshSpellReady(t *testing.T) {
	c := NewCooldowns()
	assert.True(t, c.CanCast(1, true, 0))
	assert.True(t, c.CanCast(1, false, 0))
}

func TestCooldownBlocksUntilReady(t *testing.T) {
	c := NewCooldowns()
	c.Start(1, 5000, false, 1500, 1000)

	assert.False(t, c.CanCast(1, false, 5999))
	assert.True(t, c.CanCast(1, false, 6000), "ready at exactly readyAt")
	assert.Equal(t, int64(6000), c.ReadyAt(1))
}

func TestGlobalCooldownSharedAcrossSpells(t *testing.T) {
	c := NewCooldowns()
	c.Start(1, 10000, true, 1500, 0)

	// A different GCD-bound spell is blocked by the shared GCD.
	assert.False(t, c.CanCast(2, true, 1000))
	assert.True(t, c.CanCast(2, true, 1500))

	// An off-GCD spell ignores it entirely.
	assert.True(t, c.CanCast(3, false, 100))
	assert.Equal(t, int64(1500), c.GCDReadyAt())
}

func TestOffGCDSpellDoesNotArmGCD(t *testing.T) {
	c := NewCooldowns()
	c.Start(1, 3000, false, 1500, 0)

	assert.True(t, c.CanCast(2, true, 1))
	assert.Equal(t, int64(0), c.GCDReadyAt())
}

func TestZeroCooldownImmediatelyReady(t *testing.T) {
	c := NewCooldowns()
	c.Start(1, 0, false, 1500, 500)
	assert.True(t, c.CanCast(1, false, 500))
}
