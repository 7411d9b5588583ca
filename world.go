// Package rigidsim simulates rigid boxes falling onto a static floor.
//
// Each step, every dynamic body is fitted with an oriented bounding box and tested
// against the floor with the Separating Axis Theorem, then advanced by its own solver
// with the resulting contact. Bodies do not interact with each other, so they are
// stepped in parallel.
package rigidsim

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/logging"
	"github.com/akmonengine/rigidsim/sat"
	"github.com/akmonengine/rigidsim/solver"
)

const DEFAULT_WORKERS = 1

// Floor dimensions: a thick static slab whose top face is the reference plane y = -1
const (
	FloorHalfWidth     = 50.0
	FloorHalfThickness = 1.0
	FloorTop           = -1.0
)

// Config gathers the tunables of a World.
type Config struct {
	Solver   solver.Params
	Detector sat.Params
	// Workers is the number of goroutines bodies are stepped on
	Workers int
	Logger  logging.Logger
}

func DefaultConfig() Config {
	return Config{
		Solver:   solver.DefaultParams(),
		Detector: sat.DefaultParams(),
		Workers:  DEFAULT_WORKERS,
	}
}

// NewFloor creates the default static floor, a slab whose top face lies at y = -1.
func NewFloor() (*actor.RigidBody, error) {
	transform := actor.NewTransform()
	transform.Position = mgl64.Vec3{0, FloorTop - FloorHalfThickness, 0}

	return actor.NewStaticBody(transform, actor.NewBoxShape(2*FloorHalfWidth, 2*FloorHalfThickness, 2*FloorHalfWidth))
}

type World struct {
	// Floor is the static body every dynamic body is tested against
	Floor *actor.RigidBody
	// One solver per dynamic body, in insertion order
	Bodies   []*solver.RigidSolver
	Detector *sat.Detector
	Config   Config

	Events Events

	steps []*bodyStep
}

// bodyStep holds the per-body state of one parallel step
type bodyStep struct {
	solver    *solver.RigidSolver
	info      sat.CollisionInfo
	noContact bool
	err       error
}

// NewWorld creates an empty world. A nil floor is replaced by NewFloor, so the
// default reference plane of the solver matches its top face.
func NewWorld(config Config, floor *actor.RigidBody) (*World, error) {
	if floor == nil {
		var err error
		if floor, err = NewFloor(); err != nil {
			return nil, fmt.Errorf("floor: %w", err)
		}
	}
	if floor.BodyType != actor.BodyTypeStatic {
		return nil, fmt.Errorf("floor %s must be static", floor.ID)
	}

	// Zero params fall back to the defaults
	if config.Solver == (solver.Params{}) {
		config.Solver = solver.DefaultParams()
	}
	if config.Detector == (sat.Params{}) {
		config.Detector = sat.DefaultParams()
	}
	config.Logger = logging.OrNop(config.Logger)
	detector := sat.NewDetector(config.Logger)
	detector.Params = config.Detector

	return &World{
		Floor:    floor,
		Detector: detector,
		Config:   config,
		Events:   NewEvents(),
	}, nil
}

// AddBody adds a dynamic body to the world and returns the solver driving it.
// A nil schedule applies gravity only.
func (w *World) AddBody(body *actor.RigidBody, schedule solver.ForceSchedule) (*solver.RigidSolver, error) {
	if body == nil {
		return nil, solver.ErrNilBody
	}
	if body.BodyType == actor.BodyTypeStatic {
		return nil, fmt.Errorf("body %s is static, only the floor can be", body.ID)
	}

	s, err := solver.NewRigidSolver(body, w.Config.Solver, schedule, w.Config.Logger)
	if err != nil {
		return nil, fmt.Errorf("body %s: %w", body.ID, err)
	}

	w.Bodies = append(w.Bodies, s)
	return s, nil
}

// RemoveBody removes a rigid body from the world
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, s := range w.Bodies {
		if s.Body == body {
			k = i
			break
		}
	}

	if k != -1 {
		w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	}

	w.Events.forget(body)
}

// Body returns the solver of the body with the given ID.
func (w *World) Body(id uuid.UUID) (*solver.RigidSolver, bool) {
	for _, s := range w.Bodies {
		if s.Body.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Step advances every body by dt. Errors of individual bodies are joined; the other
// bodies are still stepped.
func (w *World) Step(dt float64) error {
	workers := max(DEFAULT_WORKERS, w.Config.Workers)

	w.steps = w.steps[:0]
	for _, s := range w.Bodies {
		w.steps = append(w.steps, &bodyStep{solver: s})
	}

	// Phase 1: detection and response, each body only reads the floor
	task(workers, w.steps, func(step *bodyStep) {
		w.stepBody(dt, step)
	})

	// Phase 2: events, sequential
	var errs []error
	for _, step := range w.steps {
		if step.err != nil {
			errs = append(errs, step.err)
			continue
		}
		if step.noContact {
			w.Events.recordNoContact(step.solver.Body, step.info)
			continue
		}
		w.Events.recordCollision(step.info)
	}
	w.Events.flush()

	return errors.Join(errs...)
}

func (w *World) stepBody(dt float64, step *bodyStep) {
	body := step.solver.Body
	logger := w.Config.Logger

	info, err := w.Detector.CheckBodies(body, w.Floor)
	switch {
	case errors.Is(err, sat.ErrNoContact):
		logger.Warnf("%v, stepping in free flight", err)
		step.noContact = true
		step.info = info
		info = sat.CollisionInfo{}
	case err != nil:
		step.err = err
		return
	case info.LowConfidence():
		logger.Warnf("body %s: low confidence %s contact with %d incident vertices", body.ID, info.Type, info.Incident)
	}
	if !step.noContact {
		step.info = info
	}

	if err := step.solver.Step(dt, info); err != nil {
		step.err = fmt.Errorf("body %s: %w", body.ID, err)
	}
}
