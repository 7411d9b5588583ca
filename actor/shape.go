package actor

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeBox ShapeType = iota
	ShapeTypePlane
	ShapeTypeMesh
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeBox:
		return "box"
	case ShapeTypePlane:
		return "plane"
	case ShapeTypeMesh:
		return "mesh"
	}
	return fmt.Sprintf("ShapeType(%d)", int(t))
}

// Shape is the interface that all collision shapes must implement.
// Collision geometry is always derived from the body-space vertex cloud.
type Shape interface {
	Type() ShapeType
	// Validate reports whether the shape describes a usable geometry
	Validate() error
	// ComputeMass calculates mass data for the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	// VertexPositions returns the mesh vertices in body space
	VertexPositions() []mgl64.Vec3
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

// NewBoxShape creates a box from its full width, height and depth.
func NewBoxShape(width, height, depth float64) *Box {
	return &Box{HalfExtents: mgl64.Vec3{width * 0.5, height * 0.5, depth * 0.5}}
}

func (b *Box) Type() ShapeType { return ShapeTypeBox }

func (b *Box) Validate() error {
	for i, h := range b.HalfExtents {
		if !(h > 0) || math.IsInf(h, 0) {
			return fmt.Errorf("%w: box half extent %d is %v", ErrInvalidDimensions, i, h)
		}
	}
	return nil
}

func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (dimension1² + dimension2²)
	factor := mass / 12.0
	ix := factor * (y*y + z*z)
	iy := factor * (x*x + z*z)
	iz := factor * (x*x + y*y)

	return mgl64.Diag3(mgl64.Vec3{ix, iy, iz})
}

// VertexPositions returns the 8 corners: the -z face first, then the +z face
// in the same winding.
func (b *Box) VertexPositions() []mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()
	return []mgl64.Vec3{
		{-hx, -hy, -hz},
		{+hx, -hy, -hz},
		{+hx, +hy, -hz},
		{-hx, +hy, -hz},

		{-hx, -hy, +hz},
		{+hx, -hy, +hz},
		{+hx, +hy, +hz},
		{-hx, +hy, +hz},
	}
}

// Plane is a finite flat quad in the body XZ plane, facing +Y.
// It has no volume, so it can only back a static body.
type Plane struct {
	HalfWidth float64
	HalfDepth float64
}

func (p *Plane) Type() ShapeType { return ShapeTypePlane }

func (p *Plane) Validate() error {
	if !(p.HalfWidth > 0) || !(p.HalfDepth > 0) || math.IsInf(p.HalfWidth, 0) || math.IsInf(p.HalfDepth, 0) {
		return fmt.Errorf("%w: plane half size (%v, %v)", ErrInvalidDimensions, p.HalfWidth, p.HalfDepth)
	}
	return nil
}

func (p *Plane) ComputeMass(density float64) float64 {
	return 0
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (p *Plane) VertexPositions() []mgl64.Vec3 {
	return []mgl64.Vec3{
		{-p.HalfWidth, 0, -p.HalfDepth},
		{+p.HalfWidth, 0, -p.HalfDepth},
		{+p.HalfWidth, 0, +p.HalfDepth},
		{-p.HalfWidth, 0, +p.HalfDepth},
	}
}

// Mesh is an arbitrary vertex cloud, typically the vertex buffer of a triangle mesh.
// Mass properties are approximated by the solid box spanning the vertex bounds.
type Mesh struct {
	Positions []mgl64.Vec3
}

func (m *Mesh) Type() ShapeType { return ShapeTypeMesh }

func (m *Mesh) Validate() error {
	if len(m.Positions) == 0 {
		return fmt.Errorf("%w: mesh has no vertices", ErrInvalidDimensions)
	}
	return nil
}

func (m *Mesh) bounds() *Box {
	if len(m.Positions) == 0 {
		return &Box{}
	}

	lo, hi := m.Positions[0], m.Positions[0]
	for _, v := range m.Positions[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], v[i])
			hi[i] = math.Max(hi[i], v[i])
		}
	}
	return &Box{HalfExtents: hi.Sub(lo).Mul(0.5)}
}

func (m *Mesh) ComputeMass(density float64) float64 {
	return m.bounds().ComputeMass(density)
}

func (m *Mesh) ComputeInertia(mass float64) mgl64.Mat3 {
	return m.bounds().ComputeInertia(mass)
}

func (m *Mesh) VertexPositions() []mgl64.Vec3 {
	return m.Positions
}
