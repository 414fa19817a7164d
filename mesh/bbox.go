package mesh

import "math"

// BoundingBox is an axis-aligned box in 2 or 3 dimensions. The invariant
// Min[d] <= Max[d] holds for every dimension once the box has seen at least
// one point; an Empty box reports IsEmpty() == true and participates in
// Expand/ExpandBox as the identity element.
type BoundingBox struct {
	Dimensions int
	Min        []float64
	Max        []float64
}

// NewBoundingBox returns an empty bounding box for the given dimensionality.
func NewBoundingBox(dimensions int) BoundingBox {
	min := make([]float64, dimensions)
	max := make([]float64, dimensions)
	for d := 0; d < dimensions; d++ {
		min[d] = math.Inf(1)
		max[d] = math.Inf(-1)
	}
	return BoundingBox{Dimensions: dimensions, Min: min, Max: max}
}

// IsEmpty reports whether no point has ever been expanded into the box.
func (b BoundingBox) IsEmpty() bool {
	for d := 0; d < b.Dimensions; d++ {
		if b.Min[d] > b.Max[d] {
			return true
		}
	}
	return false
}

// Expand unions a single point into the box in place.
func (b *BoundingBox) Expand(point []float64) {
	for d := 0; d < b.Dimensions; d++ {
		if point[d] < b.Min[d] {
			b.Min[d] = point[d]
		}
		if point[d] > b.Max[d] {
			b.Max[d] = point[d]
		}
	}
}

// ExpandBox unions another bounding box into this one in place.
func (b *BoundingBox) ExpandBox(other BoundingBox) {
	if other.IsEmpty() {
		return
	}
	for d := 0; d < b.Dimensions; d++ {
		if other.Min[d] < b.Min[d] {
			b.Min[d] = other.Min[d]
		}
		if other.Max[d] > b.Max[d] {
			b.Max[d] = other.Max[d]
		}
	}
}

// Inflate grows the box by a safety factor applied to each dimension's
// extent, symmetrically on both sides. A factor of 0 leaves the box
// unchanged.
func (b *BoundingBox) Inflate(safetyFactor float64) {
	if b.IsEmpty() {
		return
	}
	for d := 0; d < b.Dimensions; d++ {
		extent := b.Max[d] - b.Min[d]
		pad := extent * safetyFactor / 2
		if pad == 0 && extent == 0 {
			// degenerate (single point) box: still allow some slack so a
			// receiver bounding box around a point isn't zero-width.
			pad = safetyFactor
		}
		b.Min[d] -= pad
		b.Max[d] += pad
	}
}

// Contains reports whether point lies within the box (inclusive bounds).
func (b BoundingBox) Contains(point []float64) bool {
	if b.IsEmpty() {
		return false
	}
	for d := 0; d < b.Dimensions; d++ {
		if point[d] < b.Min[d] || point[d] > b.Max[d] {
			return false
		}
	}
	return true
}

// Intersects reports whether two boxes overlap in every dimension.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	for d := 0; d < b.Dimensions; d++ {
		if b.Max[d] < other.Min[d] || other.Max[d] < b.Min[d] {
			return false
		}
	}
	return true
}

// Subset reports whether b is fully contained within other.
func (b BoundingBox) Subset(other BoundingBox) bool {
	if b.IsEmpty() {
		return true
	}
	if other.IsEmpty() {
		return false
	}
	for d := 0; d < b.Dimensions; d++ {
		if b.Min[d] < other.Min[d] || b.Max[d] > other.Max[d] {
			return false
		}
	}
	return true
}
