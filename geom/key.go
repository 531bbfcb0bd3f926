package geom

import "math"

// KeyQuantum is the grid spacing used by KeyOf. Positions are expected in
// the normalized working frame (half-extent 100), so this is far below any
// meaningful feature size and far above accumulated rounding noise.
const KeyQuantum = 1e-6

// PositionKey is a quantized position usable as a map key. Two positions
// that round to the same grid cell share a key.
type PositionKey struct {
	X, Y, Z int64
}

// KeyOf returns the key of position p.
func KeyOf(p Vec3) PositionKey {
	return PositionKey{
		X: int64(math.Round(p.X / KeyQuantum)),
		Y: int64(math.Round(p.Y / KeyQuantum)),
		Z: int64(math.Round(p.Z / KeyQuantum)),
	}
}

// Less orders keys lexicographically by X, then Y, then Z.
func (k PositionKey) Less(o PositionKey) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.Z < o.Z
}
