// Package geometry provides basic geometric types used throughout the solver.
package geometry

// Point2D represents a 2D point with floating-point coordinates.
// Used for page-space pointer positions.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// PointInt represents a 2D point with integer coordinates (image pixels).
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Rect represents a rectangle with floating-point coordinates.
// Bounding boxes reported by the page are in this form.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Expand grows (negative n shrinks) the rectangle by n pixels on every side.
func (r RectInt) Expand(n int) RectInt {
	return RectInt{X: r.X - n, Y: r.Y - n, Width: r.Width + 2*n, Height: r.Height + 2*n}
}

// CenterX returns the integer center column, truncating toward the left edge.
func (r RectInt) CenterX() int {
	return r.X + r.Width/2
}

// BoundingBox computes the axis-aligned bounding box of a set of integer points.
// The box is inclusive of every point, so a single point yields a 1x1 box.
func BoundingBox(points []PointInt) RectInt {
	if len(points) == 0 {
		return RectInt{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}
