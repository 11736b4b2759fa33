package client

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// samplePointer converts the pointer to world pixels with the camera from the previous tick.
func (e *Engine) samplePointer() {
	e.aimX = float64(e.cameraX + e.pointerX)
	e.aimY = float64(e.cameraY + e.pointerY)
}

// updateCamera centers the viewport on the player.
func (e *Engine) updateCamera() {
	cx, cy := e.center()
	e.cameraX = int(cx) - e.tune.Viewport[0]/2
	e.cameraY = int(cy) - e.tune.Viewport[1]/2
}

// tickDash starts a requested dash when off cooldown and ends an expired one. A dash moves in a
// straight line along the held direction and grants invincibility while it lasts.
func (e *Engine) tickDash() {
	if e.dashRequested {
		e.dashRequested = false
		dir := mgl64.Vec2{float64(e.dirX), float64(e.dirY)}
		if !e.dashing && e.mode == ModeNormal && !e.now.Before(e.dashReady) && dir.Len() > 0 {
			e.dashing = true
			e.dashVel = dir.Normalize().Mul(e.tune.Dash.Speed)
			e.dashUntil = e.now.Add(time.Duration(e.tune.Dash.DurationMs) * time.Millisecond)
			e.dashReady = e.now.Add(time.Duration(e.tune.Dash.CooldownMs) * time.Millisecond)
		}
	}
	if !e.dashing {
		return
	}
	if !e.now.Before(e.dashUntil) {
		e.dashing = false
		return
	}
	e.moveBy(int(math.Round(e.dashVel.X())), int(math.Round(e.dashVel.Y())))
}

// moveBy moves each axis independently, one pixel at a time, stopping an axis at the first pixel
// whose bounding box would overlap a solid cell.
func (e *Engine) moveBy(dx, dy int) {
	size, tile := e.tune.Player.Size, e.tune.TileSize
	for step := sign(dx); dx != 0; dx -= step {
		if !e.grid.BoxFree(e.x+step, e.y, size, tile) {
			break
		}
		e.x += step
	}
	for step := sign(dy); dy != 0; dy -= step {
		if !e.grid.BoxFree(e.x, e.y+step, size, tile) {
			break
		}
		e.y += step
	}
}
