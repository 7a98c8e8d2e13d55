package preview

import (
	"context"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
)

const repeatInterval = 125 * time.Millisecond // time between successive regenerations/pans when pressed down
const basePanDistance = 100.0
const zoomStep = 0.15

// input manages all event handling for the preview.
type input struct {
	p *Preview

	// Space regenerates, shift+space steps back through history. If held
	// down, we do so continuously.
	spaceHeld, shiftHeld bool
	lastRegenTime        time.Time

	// Arrow keys pan, continuously if held.
	panKeyHeld                   bool
	panDirectionX, panDirectionY float64
	lastPanTime                  time.Time

	// Drag/pan state (per-gesture), captured on mouse press.
	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartPanX, dragStartPanY     float64
}

func newInput(p *Preview) *input {
	return &input{
		p:             p,
		lastRegenTime: time.Now(),
		lastPanTime:   time.Now(),
	}
}

// setupCallbacks configures all GLFW event callbacks. GLFW invokes them from
// PollEvents on the main thread, so they use a background context.
func (in *input) setupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		in.handleKey(context.Background(), key, action, mods)
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		in.handleMouseButton(button, action)
	})
	window.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		in.updatePanning(xpos, ypos)
	})
	window.SetScrollCallback(func(_ *glfw.Window, _, zoomDelta float64) {
		in.performZoom(zoomDelta)
	})
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, newW, newH int) {
		in.p.view.SetViewport(newW, newH)
	})
}

func (in *input) handleKey(ctx context.Context, key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	switch key {
	case glfw.KeySpace:
		in.handleRegenerationKeys(ctx, action, mods)
	case glfw.KeyTab:
		if action == glfw.Press {
			in.p.app.CycleTemplate((mods & glfw.ModShift) == 0)
			in.p.regenerate(ctx)
		}
	case glfw.KeyL:
		if action == glfw.Press {
			in.p.rate(ctx, true)
		}
	case glfw.KeyD:
		if action == glfw.Press {
			in.p.rate(ctx, false)
		}
	case glfw.KeyP:
		if action == glfw.Press {
			in.p.snapshot()
		}
	case glfw.KeyR:
		if action == glfw.Press {
			in.p.view.Fit(in.p.quad.Size())
		}
	case glfw.KeyDown:
		in.handlePanKeys(action, 0, -1)
	case glfw.KeyUp:
		in.handlePanKeys(action, 0, 1)
	case glfw.KeyLeft:
		in.handlePanKeys(action, 1, 0)
	case glfw.KeyRight:
		in.handlePanKeys(action, -1, 0)
	case glfw.KeyEqual:
		if action == glfw.Press {
			in.performZoom(1)
		}
	case glfw.KeyMinus:
		if action == glfw.Press {
			in.performZoom(-1)
		}
	case glfw.KeyEscape, glfw.KeyQ:
		if action == glfw.Press {
			in.p.window.SetShouldClose(true)
		}
	}
}

// handleRegenerationKeys handles space and shift+space presses/releases.
func (in *input) handleRegenerationKeys(ctx context.Context, action glfw.Action, mods glfw.ModifierKey) {
	shiftHeld := (mods & glfw.ModShift) != 0

	switch action {
	case glfw.Press:
		in.shiftHeld = shiftHeld
		in.spaceHeld = !shiftHeld
		in.regenerateOrStep(ctx)
		in.lastRegenTime = time.Now()

	case glfw.Release:
		in.spaceHeld = false
		in.shiftHeld = false

	case glfw.Repeat:
		// Ignore repeat events - we handle continuous regeneration ourselves to
		// ensure consistent timing.
	}
}

func (in *input) regenerateOrStep(ctx context.Context) {
	if in.p.app.Engine.Busy(in.p.surface) {
		return
	}
	if in.shiftHeld {
		in.p.step(ctx, false)
		return
	}
	in.p.regenerate(ctx)
}

// handleContinuousRegeneration handles continuous regeneration while space is held.
func (in *input) handleContinuousRegeneration(ctx context.Context) {
	if !(in.spaceHeld || in.shiftHeld) {
		return
	}
	now := time.Now()
	if now.Sub(in.lastRegenTime) < repeatInterval {
		return
	}
	in.regenerateOrStep(ctx)
	in.lastRegenTime = now
}

// handlePanKeys handles arrow key presses, and also releases for
// continuous panning.
func (in *input) handlePanKeys(action glfw.Action, dx, dy float64) {
	switch action {
	case glfw.Press:
		in.panKeyHeld = true
		in.panDirectionX = dx
		in.panDirectionY = dy
		in.performPan(dx, dy)
		in.lastPanTime = time.Now()
	case glfw.Release:
		in.panKeyHeld = false
	}
}

// performPan moves the canvas by basePanDistance screen pixels.
func (in *input) performPan(dx, dy float64) {
	in.p.view.PanBy(dx*basePanDistance, dy*basePanDistance)
}

// handleContinuousPanning handles continuous panning while pan keys are held.
func (in *input) handleContinuousPanning() {
	if !in.panKeyHeld {
		return
	}
	now := time.Now()
	if now.Sub(in.lastPanTime) < repeatInterval {
		return
	}
	in.performPan(in.panDirectionX, in.panDirectionY)
	in.lastPanTime = now
}

// handleMouseButton handles mouse button events for panning.
func (in *input) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}
	switch action {
	case glfw.Press:
		in.isDragging = true
		in.dragStartMouseX, in.dragStartMouseY = in.p.window.GetCursorPos()
		in.dragStartPanX, in.dragStartPanY = in.p.view.PanX, in.p.view.PanY
	case glfw.Release:
		in.isDragging = false
	}
}

// updatePanning updates pan position based on mouse movement.
func (in *input) updatePanning(xpos, ypos float64) {
	if !in.isDragging {
		return
	}
	scaleX, scaleY := in.p.window.GetContentScale()
	dx := (xpos - in.dragStartMouseX) * float64(scaleX)
	dy := (ypos - in.dragStartMouseY) * float64(scaleY)
	in.p.view.SetPan(in.dragStartPanX+dx, in.dragStartPanY+dy)
}

// performZoom zooms about the cursor.
func (in *input) performZoom(zoomDelta float64) {
	mouseX, mouseY := in.p.window.GetCursorPos()
	scaleX, scaleY := in.p.window.GetContentScale()
	in.p.view.ZoomAt(1.0+zoomDelta*zoomStep, mouseX*float64(scaleX), mouseY*float64(scaleY))
}
