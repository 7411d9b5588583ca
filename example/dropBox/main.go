package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/rigidsim"
	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/logging"
	"github.com/akmonengine/rigidsim/solver"
)

var (
	steps   = flag.Int("steps", 600, "Number of simulation steps")
	dt      = flag.Float64("dt", 0.01, "Timestep in seconds")
	height  = flag.Float64("height", 2, "Initial height of the box center")
	tilt    = flag.Float64("tilt", 20, "Initial tilt of the box around Z, in degrees")
	spin    = flag.Float64("spin", 0, "Initial angular velocity around Y, in rad/s")
	every   = flag.Int("every", 10, "Print the state every N steps")
	debug   = flag.Bool("debug", false, "Log every contact")
	workers = flag.Int("workers", 1, "Worker goroutines")
)

func main() {
	flag.Parse()

	logger := logging.NewDefaultLogger("dropBox", *debug)

	config := rigidsim.DefaultConfig()
	config.Workers = *workers
	config.Logger = logger

	world, err := rigidsim.NewWorld(config, nil)
	if err != nil {
		logger.Errorf("world: %v", err)
		os.Exit(1)
	}

	box, err := actor.NewBox(1, 1, 1, 10, mgl64.Vec3{}, mgl64.Vec3{0, *spin, 0})
	if err != nil {
		logger.Errorf("box: %v", err)
		os.Exit(1)
	}
	box.Transform.Position = mgl64.Vec3{0, *height, 0}
	box.Transform.Orientation.Set(mgl64.QuatRotate(mgl64.DegToRad(*tilt), mgl64.Vec3{0, 0, 1}))
	box.UpdateInertiaWorld()

	// Instant force at the first vertex on step 1, zero by default
	s, err := world.AddBody(box, solver.Kick{Step: 1, Vertex: 0})
	if err != nil {
		logger.Errorf("add body: %v", err)
		os.Exit(1)
	}

	bounces := 0
	world.Events.Subscribe(rigidsim.COLLISION_ENTER, func(event rigidsim.Event) {
		e := event.(rigidsim.CollisionEnterEvent)
		bounces++
		logger.Infof("t=%.3f impact #%d, %s contact at %v", s.Time(), bounces, e.Info.Type, e.Info.Point)
	})
	world.Events.Subscribe(rigidsim.LOW_CONFIDENCE, func(event rigidsim.Event) {
		logger.Warnf("t=%.3f unclassified contact", s.Time())
	})

	printEvery := max(*every, 1)
	fmt.Printf("%8s %10s %10s %10s %10s %10s\n", "t", "x", "y", "z", "vy", "|ω|")
	for i := 0; i < *steps; i++ {
		if err := world.Step(*dt); err != nil {
			logger.Errorf("step %d: %v", i, err)
			os.Exit(1)
		}

		if i%printEvery == 0 {
			p := box.Transform.Position
			fmt.Printf("%8.3f %10.4f %10.4f %10.4f %10.4f %10.4f\n",
				s.Time(), p.X(), p.Y(), p.Z(), box.Velocity.Y(), box.AngularVelocity.Len())
		}
	}

	logger.Infof("%d impacts, final kinetic energy %.4f J", bounces, box.KineticEnergy())
}
