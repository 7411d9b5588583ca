package linalg

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EigenTolerance is the relative gap under which two eigenvalues are treated as equal.
// Inside such a degenerate eigenspace any orthonormal basis is valid, so a canonical one
// is built instead of trusting the numerically arbitrary null-space vectors.
const EigenTolerance = 1e-6

// SymmetricEigen3 decomposes the real symmetric matrix m.
//
// Eigenvalues are returned in descending order, and the eigenvectors are the matching
// columns of a right-handed orthonormal matrix. A diagonal input yields its diagonal
// and the world basis unchanged, unsorted. Only the upper triangle of m is read.
//
// The eigenvalues come from the trigonometric closed form of the characteristic cubic
// (Smith, "Eigenvalues of a symmetric 3x3 matrix", 1961), the eigenvectors from cross
// products of the rows of (m - λI).
func SymmetricEigen3(m mgl64.Mat3) (mgl64.Vec3, mgl64.Mat3) {
	a00, a11, a22 := m.At(0, 0), m.At(1, 1), m.At(2, 2)
	a01, a02, a12 := m.At(0, 1), m.At(0, 2), m.At(1, 2)

	offDiagonal := a01*a01 + a02*a02 + a12*a12
	if offDiagonal == 0 {
		return mgl64.Vec3{a00, a11, a22}, mgl64.Ident3()
	}

	q := (a00 + a11 + a22) / 3.0
	p2 := (a00-q)*(a00-q) + (a11-q)*(a11-q) + (a22-q)*(a22-q) + 2.0*offDiagonal
	p := math.Sqrt(p2 / 6.0)

	sym := symmetric(a00, a11, a22, a01, a02, a12)
	b := sym.Sub(mgl64.Ident3().Mul(q)).Mul(1.0 / p)
	r := mgl64.Clamp(b.Det()/2.0, -1.0, 1.0)
	phi := math.Acos(r) / 3.0

	e1 := q + 2.0*p*math.Cos(phi)
	e3 := q + 2.0*p*math.Cos(phi+2.0*math.Pi/3.0)
	e2 := 3.0*q - e1 - e3
	values := mgl64.Vec3{e1, e2, e3}

	scale := math.Max(math.Max(math.Abs(e1), math.Abs(e3)), 1.0)
	tol := EigenTolerance * scale
	same12 := math.Abs(e1-e2) < tol
	same23 := math.Abs(e2-e3) < tol

	var v1, v2, v3 mgl64.Vec3
	switch {
	case same12 && same23:
		return values, mgl64.Ident3()
	case same12:
		v3 = eigenvector(sym, e3)
		v1 = Perpendicular(v3)
		v2 = v3.Cross(v1)
	case same23:
		v1 = eigenvector(sym, e1)
		v2 = Perpendicular(v1)
		v3 = v1.Cross(v2)
	case math.Abs(e1-e2) < math.Abs(e2-e3):
		// e3 is the most isolated, the close pair is solved in its orthogonal plane
		v3 = eigenvector(sym, e3)
		v1 = planeEigenvector(sym, v3)
		v2 = v3.Cross(v1)
	default:
		v1 = eigenvector(sym, e1)
		v2 = planeEigenvector(sym, v1)
		v3 = v1.Cross(v2)
	}

	return values, mgl64.Mat3FromCols(v1, v2, v3)
}

func symmetric(a00, a11, a22, a01, a02, a12 float64) mgl64.Mat3 {
	return mgl64.Mat3{
		a00, a01, a02,
		a01, a11, a12,
		a02, a12, a22,
	}
}

// eigenvector returns a unit vector spanning the null space of (m - λI), for a simple
// eigenvalue λ. The null space is orthogonal to every row, so the largest cross product
// of two rows is the best conditioned estimate.
func eigenvector(m mgl64.Mat3, lambda float64) mgl64.Vec3 {
	shifted := m.Sub(mgl64.Ident3().Mul(lambda))
	r0, r1, r2 := shifted.Row(0), shifted.Row(1), shifted.Row(2)

	candidates := [3]mgl64.Vec3{r0.Cross(r1), r0.Cross(r2), r1.Cross(r2)}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.LenSqr() > best.LenSqr() {
			best = c
		}
	}

	if v, ok := SafeNormalize(best); ok {
		return canonicalSign(v)
	}

	// Rank <= 1: every vector orthogonal to the dominant row is an eigenvector
	dominant := r0
	for _, r := range []mgl64.Vec3{r1, r2} {
		if r.LenSqr() > dominant.LenSqr() {
			dominant = r
		}
	}
	if n, ok := SafeNormalize(dominant); ok {
		return canonicalSign(Perpendicular(n))
	}
	return mgl64.Vec3{1, 0, 0}
}

// planeEigenvector returns the eigenvector of the larger eigenvalue of m restricted to
// the plane orthogonal to the unit eigenvector n. The 2x2 problem is solved with a
// single Jacobi rotation, which stays accurate however close its two eigenvalues are.
func planeEigenvector(m mgl64.Mat3, n mgl64.Vec3) mgl64.Vec3 {
	u := Perpendicular(n)
	w := n.Cross(u)

	a := u.Dot(m.Mul3x1(u))
	b := u.Dot(m.Mul3x1(w))
	c := w.Dot(m.Mul3x1(w))

	theta := 0.5 * math.Atan2(2*b, a-c)
	v := u.Mul(math.Cos(theta)).Add(w.Mul(math.Sin(theta)))
	if unit, ok := SafeNormalize(v); ok {
		return canonicalSign(unit)
	}
	return u
}

// canonicalSign flips v so that its largest component is positive.
func canonicalSign(v mgl64.Vec3) mgl64.Vec3 {
	largest := 0
	for i := 1; i < 3; i++ {
		if math.Abs(v[i]) > math.Abs(v[largest]) {
			largest = i
		}
	}
	if v[largest] < 0 {
		return v.Mul(-1)
	}
	return v
}
