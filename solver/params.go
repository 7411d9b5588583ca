package solver

import "github.com/go-gl/mathgl/mgl64"

// Default calibration of the collision response. These values are hand tuned for a
// box bouncing on a floor at y = -1 and have no closed-form derivation.
const (
	// DefaultRestitution is the ratio of separating to approaching normal speed
	DefaultRestitution = 0.65

	// DefaultSeparatingVelocity is the relative normal velocity above which a contact is
	// treated as separating or resting, and no impulse is applied
	DefaultSeparatingVelocity = -0.01

	// DefaultPenetrationSoftening divides the momentum needed to cancel the penetration
	// in one step, so the correction is spread over several steps
	DefaultPenetrationSoftening = 22.5
)

// Params holds the tunable constants of the solver.
type Params struct {
	// Gravity acceleration (m/s², or N/kg)
	Gravity            mgl64.Vec3
	Restitution        float64
	SeparatingVelocity float64
	// PenetrationSoftening must be > 0
	PenetrationSoftening float64
	// ReferencePlane is a point of the static surface penetration is measured against
	ReferencePlane mgl64.Vec3
	// SkipLowConfidence turns unclassified contacts into free flight
	SkipLowConfidence bool
}

func DefaultParams() Params {
	return Params{
		Gravity:              mgl64.Vec3{0, -9.81, 0},
		Restitution:          DefaultRestitution,
		SeparatingVelocity:   DefaultSeparatingVelocity,
		PenetrationSoftening: DefaultPenetrationSoftening,
		ReferencePlane:       mgl64.Vec3{0, -1, 0},
	}
}
