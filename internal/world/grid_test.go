package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridInsertQueryRemove(t *testing.T) {
	g := NewSpatialGrid(0)
	g.Insert(1, Vec3{X: 10})
	g.Insert(2, Vec3{X: 200})
	assert.Equal(t, 2, g.Len())

	got := g.QueryRange(Vec3{}, 50)
	assert.ElementsMatch(t, []GUID{1}, got)

	g.Remove(1)
	assert.False(t, g.Has(1))
	assert.Empty(t, g.QueryRange(Vec3{}, 50))

	// Removing twice is a no-op.
	g.Remove(1)
	assert.Equal(t, 1, g.Len())
}

func TestGridRadiusBoundaryInclusive(t *testing.T) {
	g := NewSpatialGrid(0)
	g.Insert(1, Vec3{X: 30})
	g.Insert(2, Vec3{X: 30.001})

	got := g.QueryRange(Vec3{}, 30)
	assert.ElementsMatch(t, []GUID{1}, got, "exactly-at-radius is in, just past is out")
}

func TestGridRadiusZero(t *testing.T) {
	g := NewSpatialGrid(0)
	g.Insert(1, Vec3{X: 5, Y: 5, Z: 5})
	g.Insert(2, Vec3{X: 5, Y: 5, Z: 5.5})

	assert.ElementsMatch(t, []GUID{1}, g.QueryRange(Vec3{X: 5, Y: 5, Z: 5}, 0))
	assert.Empty(t, g.QueryRange(Vec3{X: 5, Y: 5, Z: 5}, -1))
}

func TestGridMoveAcrossCells(t *testing.T) {
	g := NewSpatialGrid(50)
	g.Insert(7, Vec3{X: 10})
	g.Move(7, Vec3{X: 120})

	assert.Empty(t, g.QueryRange(Vec3{}, 30))
	assert.ElementsMatch(t, []GUID{7}, g.QueryRange(Vec3{X: 120}, 10))

	pos, ok := g.Position(7)
	assert.True(t, ok)
	assert.Equal(t, float32(120), pos.X)
}

func TestGridMoveWithinCell(t *testing.T) {
	g := NewSpatialGrid(50)
	g.Insert(7, Vec3{X: 10})
	g.Move(7, Vec3{X: 20})

	pos, _ := g.Position(7)
	assert.Equal(t, float32(20), pos.X)
	assert.ElementsMatch(t, []GUID{7}, g.QueryRange(Vec3{X: 20}, 1))
}

func TestGridMoveUnknownInserts(t *testing.T) {
	g := NewSpatialGrid(0)
	g.Move(9, Vec3{X: 1})
	assert.True(t, g.Has(9))
}

func TestGridNegativeCoordinates(t *testing.T) {
	g := NewSpatialGrid(50)
	g.Insert(1, Vec3{X: -10, Y: -10, Z: -10})
	g.Insert(2, Vec3{X: -400, Y: 0, Z: 0})

	got := g.QueryRange(Vec3{X: -12, Y: -12, Z: -12}, 10)
	assert.ElementsMatch(t, []GUID{1}, got)
}

func TestGridQuerySpansManyCells(t *testing.T) {
	g := NewSpatialGrid(50)
	for i := GUID(1); i <= 10; i++ {
		g.Insert(i, Vec3{X: float32(i) * 40})
	}
	got := g.QueryRange(Vec3{}, 250)
	assert.Len(t, got, 6) // 40..240 inclusive
}
