package world

// SpatialGrid is a 3-D uniform-cell index over entity positions, used for
// interest management and broadcast fan-out. Range queries visit only the
// cells whose bounding box intersects the query sphere, then filter by
// exact distance, so cost is O(cells visited + candidates) regardless of
// population elsewhere.
//
// Owned by one zone goroutine — no locks.
type SpatialGrid struct {
	cellSize  float32
	cells     map[gridKey]map[GUID]struct{}
	positions map[GUID]Vec3
}

type gridKey struct {
	cx, cy, cz int32
}

// DefaultCellSize is a compromise between cell fan-out and candidate count
// for the usual 25–100 unit broadcast radii.
const DefaultCellSize float32 = 50

func NewSpatialGrid(cellSize float32) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &SpatialGrid{
		cellSize:  cellSize,
		cells:     make(map[gridKey]map[GUID]struct{}),
		positions: make(map[GUID]Vec3),
	}
}

// cellCoord floors toward negative infinity so negative world coordinates
// land in negative cells instead of collapsing around zero.
func (g *SpatialGrid) cellCoord(v float32) int32 {
	q := v / g.cellSize
	c := int32(q)
	if q < 0 && float32(c) != q {
		c--
	}
	return c
}

func (g *SpatialGrid) key(p Vec3) gridKey {
	return gridKey{g.cellCoord(p.X), g.cellCoord(p.Y), g.cellCoord(p.Z)}
}

// Insert adds or repositions an entity.
func (g *SpatialGrid) Insert(guid GUID, pos Vec3) {
	if _, ok := g.positions[guid]; ok {
		g.Move(guid, pos)
		return
	}
	k := g.key(pos)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[GUID]struct{})
		g.cells[k] = cell
	}
	cell[guid] = struct{}{}
	g.positions[guid] = pos
}

// Remove deletes an entity from the index. Unknown GUIDs are a no-op.
func (g *SpatialGrid) Remove(guid GUID) {
	pos, ok := g.positions[guid]
	if !ok {
		return
	}
	k := g.key(pos)
	if cell := g.cells[k]; cell != nil {
		delete(cell, guid)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
	delete(g.positions, guid)
}

// Move updates an entity's position, with a fast path when the entity
// stays within its current cell.
func (g *SpatialGrid) Move(guid GUID, newPos Vec3) {
	oldPos, ok := g.positions[guid]
	if !ok {
		g.Insert(guid, newPos)
		return
	}
	oldK, newK := g.key(oldPos), g.key(newPos)
	if oldK == newK {
		g.positions[guid] = newPos
		return
	}
	if cell := g.cells[oldK]; cell != nil {
		delete(cell, guid)
		if len(cell) == 0 {
			delete(g.cells, oldK)
		}
	}
	cell := g.cells[newK]
	if cell == nil {
		cell = make(map[GUID]struct{})
		g.cells[newK] = cell
	}
	cell[guid] = struct{}{}
	g.positions[guid] = newPos
}

// Position returns the indexed position for guid.
func (g *SpatialGrid) Position(guid GUID) (Vec3, bool) {
	p, ok := g.positions[guid]
	return p, ok
}

// Has reports whether guid is indexed.
func (g *SpatialGrid) Has(guid GUID) bool {
	_, ok := g.positions[guid]
	return ok
}

// Len returns the number of indexed entities.
func (g *SpatialGrid) Len() int {
	return len(g.positions)
}

// QueryRange returns every entity within Euclidean radius of center,
// inclusive of the boundary. Radius 0 returns exactly the entities at
// center.
func (g *SpatialGrid) QueryRange(center Vec3, radius float32) []GUID {
	if radius < 0 {
		return nil
	}
	minX := g.cellCoord(center.X - radius)
	maxX := g.cellCoord(center.X + radius)
	minY := g.cellCoord(center.Y - radius)
	maxY := g.cellCoord(center.Y + radius)
	minZ := g.cellCoord(center.Z - radius)
	maxZ := g.cellCoord(center.Z + radius)

	rSq := radius * radius
	var result []GUID
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for cz := minZ; cz <= maxZ; cz++ {
				for guid := range g.cells[gridKey{cx, cy, cz}] {
					if g.positions[guid].DistSq(center) <= rSq {
						result = append(result, guid)
					}
				}
			}
		}
	}
	return result
}
