// Package obb fits oriented bounding boxes to mesh vertex clouds.
//
// The fitter runs a principal component analysis of the vertices: the covariance
// matrix of the centroid-relative positions is eigen-decomposed and the vertices are
// projected on the principal axes to find the box extents.
//
// The world orientation of the box is taken from the caller's transform, not from the
// eigenbasis: the mesh is static in body space, so the transform alone tells how the
// body is rotated. Each principal extent is reported along the body axis its
// eigenvector is most aligned with, which keeps HalfSize consistent with Rotation.
package obb

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim/linalg"
)

// CovarianceEpsilon clamps near-zero covariance entries to exactly zero, which turns
// axis-aligned meshes into exactly diagonal matrices and keeps the eigenbasis stable.
const CovarianceEpsilon = 1e-4

var ErrEmptyMesh = errors.New("obb: mesh has no vertices")

// Mesh is the read-only vertex buffer of a triangle mesh, in body space.
type Mesh interface {
	VertexPositions() []mgl64.Vec3
}

// Vertices adapts a plain slice to Mesh.
type Vertices []mgl64.Vec3

func (v Vertices) VertexPositions() []mgl64.Vec3 { return v }

// OBB is an oriented bounding box in world space.
type OBB struct {
	Center   mgl64.Vec3
	HalfSize mgl64.Vec3 // along the columns of Rotation, all >= 0
	Rotation mgl64.Mat3 // orthonormal, columns are the box axes

	// Principal holds the sorted eigenbasis of the vertex covariance, in body space.
	// It is informative only and does not orient the box.
	Principal mgl64.Mat3
}

// New creates an OBB from its center, half extents and rotation.
func New(center, halfSize mgl64.Vec3, rotation mgl64.Mat3) OBB {
	return OBB{
		Center:    center,
		HalfSize:  halfSize,
		Rotation:  rotation,
		Principal: mgl64.Ident3(),
	}
}

// FromMesh fits an OBB to the mesh placed by the world transform.
func FromMesh(mesh Mesh, world mgl64.Mat4) (OBB, error) {
	return Fit(mesh.VertexPositions(), world)
}

// Fit fits an OBB to body-space vertices placed by the world transform.
// Repeated calls with the same input return bit-identical boxes.
func Fit(vertices []mgl64.Vec3, world mgl64.Mat4) (OBB, error) {
	if len(vertices) == 0 {
		return OBB{}, ErrEmptyMesh
	}

	centroid, covariance := Covariance(vertices)
	principal := PrincipalAxes(covariance)

	// Extents along the principal axes
	lo := mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64}
	hi := mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	inverse := principal.Transpose()
	for _, v := range vertices {
		local := inverse.Mul3x1(v.Sub(centroid))
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], local[i])
			hi[i] = math.Max(hi[i], local[i])
		}
	}
	extents := hi.Sub(lo).Mul(0.5)

	halfSize := mgl64.Vec3{}
	for i, axis := range bodyAxisAssignment(principal) {
		halfSize[axis] = extents[i]
	}

	return OBB{
		Center:    world.Mul4x1(centroid.Vec4(1)).Vec3(),
		HalfSize:  halfSize,
		Rotation:  world.Mat3(),
		Principal: principal,
	}, nil
}

// Covariance returns the centroid of the vertices and their covariance matrix
// (mean of the outer products of the centroid-relative positions), with entries below
// CovarianceEpsilon in magnitude clamped to zero.
func Covariance(vertices []mgl64.Vec3) (mgl64.Vec3, mgl64.Mat3) {
	if len(vertices) == 0 {
		return mgl64.Vec3{}, mgl64.Mat3{}
	}
	n := float64(len(vertices))

	centroid := mgl64.Vec3{}
	for _, v := range vertices {
		centroid = centroid.Add(v)
	}
	centroid = centroid.Mul(1.0 / n)

	covariance := mgl64.Mat3{}
	for _, v := range vertices {
		d := v.Sub(centroid)
		covariance = covariance.Add(linalg.Outer(d, d))
	}
	covariance = covariance.Mul(1.0 / n)

	for i := range covariance {
		if math.Abs(covariance[i]) < CovarianceEpsilon {
			covariance[i] = 0
		}
	}

	return centroid, covariance
}

// PrincipalAxes eigen-decomposes the covariance and returns its eigenvectors as columns,
// sorted by descending absolute eigenvalue. Ties keep the solver order, so degenerate
// clouds fall back to the world basis.
func PrincipalAxes(covariance mgl64.Mat3) mgl64.Mat3 {
	values, vectors := linalg.SymmetricEigen3(covariance)

	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(values[order[a]]) > math.Abs(values[order[b]])
	})

	sorted := mgl64.Mat3FromCols(vectors.Col(order[0]), vectors.Col(order[1]), vectors.Col(order[2]))
	// Keep the basis right-handed after the permutation
	if sorted.Det() < 0 {
		sorted.SetCol(2, sorted.Col(2).Mul(-1))
	}
	return sorted
}

var axisPermutations = [6][3]int{
	{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
}

// bodyAxisAssignment maps each principal axis to the body axis it is most aligned with,
// as the permutation maximizing the summed alignment. The first best permutation wins.
func bodyAxisAssignment(principal mgl64.Mat3) [3]int {
	best := axisPermutations[0]
	bestScore := -1.0
	for _, perm := range axisPermutations {
		score := 0.0
		for i, axis := range perm {
			score += math.Abs(principal.At(axis, i))
		}
		if score > bestScore+1e-12 {
			best = perm
			bestScore = score
		}
	}
	return best
}

// Axes returns the three box axes in world space.
func (o OBB) Axes() [3]mgl64.Vec3 {
	return [3]mgl64.Vec3{o.Rotation.Col(0), o.Rotation.Col(1), o.Rotation.Col(2)}
}

// Corners returns the 8 corners in world space. Bit k of the index selects the
// positive side of axis k.
func (o OBB) Corners() [8]mgl64.Vec3 {
	var corners [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		offset := mgl64.Vec3{
			o.HalfSize.X() * sign(i&1 != 0),
			o.HalfSize.Y() * sign(i&2 != 0),
			o.HalfSize.Z() * sign(i&4 != 0),
		}
		corners[i] = o.Center.Add(o.Rotation.Mul3x1(offset))
	}
	return corners
}

func sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

// Project returns the interval covered by the box corners on axis.
func (o OBB) Project(axis mgl64.Vec3) (float64, float64) {
	corners := o.Corners()
	lo := axis.Dot(corners[0])
	hi := lo
	for _, c := range corners[1:] {
		p := axis.Dot(c)
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	return lo, hi
}
