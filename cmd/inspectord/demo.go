package main

import (
	"math"

	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/inspector"
)

// Cube marks the spinning cube. The value is its edge length.
type Cube float32

// CubeChild marks the children spawned under the cube.
type CubeChild struct{}

// Name is a human readable label.
type Name string

// Transform places an entity. Rotation is a unit quaternion in x, y, z, w order.
type Transform struct {
	Translation [3]float32 `json:"translation"`
	Rotation    [4]float32 `json:"rotation"`
	Scale       [3]float32 `json:"scale"`
}

func (Transform) DefaultValue() any {
	return identity()
}

func identity() Transform {
	return Transform{Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}

func translated(x, y, z float32) Transform {
	t := identity()
	t.Translation = [3]float32{x, y, z}
	return t
}

// rotateY rotates t by angle radians around the y axis.
func (t Transform) rotateY(angle float64) Transform {
	s, c := math.Sincos(angle / 2)
	x, y, z, w := float64(t.Rotation[0]), float64(t.Rotation[1]), float64(t.Rotation[2]), float64(t.Rotation[3])
	q := [4]float64{
		c*x + s*z,
		c*y + s*w,
		c*z - s*x,
		c*w - s*y,
	}
	norm := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	for i := range q {
		t.Rotation[i] = float32(q[i] / norm)
	}
	return t
}

type demoKinds struct {
	cube      ecs.ComponentID
	cubeChild ecs.ComponentID
	name      ecs.ComponentID
	transform ecs.ComponentID
	test      ecs.ComponentID // Registered without a schema
}

// registerDemo registers the demo component kinds.
func registerDemo(w *ecs.World) (demoKinds, error) {
	var k demoKinds
	var err error
	if k.transform, err = ecs.Register[Transform](w); err != nil {
		return k, err
	}
	if k.name, err = ecs.Register[Name](w); err != nil {
		return k, err
	}
	if k.cube, err = ecs.Register[Cube](w, ecs.WithRequired(k.transform, w.Builtins().Visibility)); err != nil {
		return k, err
	}
	if k.cubeChild, err = ecs.Register[CubeChild](w); err != nil {
		return k, err
	}
	if k.test, err = w.RegisterComponent("main.Test", ""); err != nil {
		return k, err
	}
	return k, nil
}

// spawnDemo spawns a floor, a cube with one child, a light and a camera.
func spawnDemo(w *ecs.World, k demoKinds) error {
	floor, err := w.Spawn()
	if err != nil {
		return err
	}
	floorTransform := identity()
	s, c := math.Sincos(-math.Pi / 4)
	floorTransform.Rotation = [4]float32{float32(s), 0, 0, float32(c)}
	if err := w.Insert(floor, k.transform, floorTransform); err != nil {
		return err
	}

	cube, err := w.Spawn()
	if err != nil {
		return err
	}
	if err := w.Insert(cube, k.cube, float32(1)); err != nil {
		return err
	}
	if err := w.Set(cube, k.transform, translated(0, 0.5, 0)); err != nil {
		return err
	}
	if _, err := spawnCubeChild(w, k, cube); err != nil {
		return err
	}

	light, err := w.Spawn()
	if err != nil {
		return err
	}
	if err := w.Insert(light, k.transform, translated(4, 8, 4)); err != nil {
		return err
	}
	if err := w.Insert(light, k.test, uint64(0)); err != nil {
		return err
	}

	camera, err := w.Spawn()
	if err != nil {
		return err
	}
	if err := w.Insert(camera, k.transform, translated(-2.5, 4.5, 9)); err != nil {
		return err
	}
	return w.Insert(camera, k.name, "Camera")
}

func spawnCubeChild(w *ecs.World, k demoKinds, cube ecs.Entity) (ecs.Entity, error) {
	child, err := w.Spawn()
	if err != nil {
		return 0, err
	}
	if err := w.Insert(child, k.cubeChild, nil); err != nil {
		return 0, err
	}
	if err := w.Insert(child, k.name, "CubeChild"); err != nil {
		return 0, err
	}
	if err := w.SetParent(child, cube); err != nil {
		return 0, err
	}
	return child, nil
}

// spin turns every cube around its y axis at half a radian per second.
func (k demoKinds) spin(tickRate float64) inspector.System {
	step := 0.5 / tickRate
	return func(w *ecs.World) error {
		for _, e := range w.Entities() {
			if !w.Has(e, k.cube) || !w.Has(e, k.transform) {
				continue
			}
			err := w.Mutate(e, k.transform, func(v any) (any, error) {
				t, err := codec.Into[Transform](v)
				if err != nil {
					return nil, err
				}
				return t.rotateY(step), nil
			})
			if err != nil {
				return eris.Wrapf(err, "failed to spin cube %s", e)
			}
		}
		return nil
	}
}
