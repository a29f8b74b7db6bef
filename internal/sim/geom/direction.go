package geom

// Direction is a coarse facing. The numeric value is the row of the
// directional walk sheet.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// Facing picks the dominant axis of a displacement. Horizontal wins only when
// strictly larger; exact ties break toward Right/Down.
func Facing(dx, dy float64) Direction {
	if abs(dx) > abs(dy) {
		if dx >= 0 {
			return Right
		}
		return Left
	}
	if dy >= 0 {
		return Down
	}
	return Up
}

// LeadingProbe returns a point offset beyond the edge of box in direction d,
// taken at the box midline.
func LeadingProbe(box Rect, d Direction, offset float64) Point {
	mid := box.Center()
	switch d {
	case Right:
		return Point{X: box.Right + offset, Y: mid.Y}
	case Left:
		return Point{X: box.Left - offset, Y: mid.Y}
	case Up:
		return Point{X: mid.X, Y: box.Top - offset}
	case Down:
		return Point{X: mid.X, Y: box.Bottom + offset}
	default:
		return mid
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
