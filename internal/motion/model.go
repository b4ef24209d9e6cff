package motion

import "math"

const (
	DEFAULT_STEP = 0.1

	ANIMATION_IDLE = "idle"
	ANIMATION_WALK = "walk"
)

type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

// Lerp is exact at both ends: Lerp(a, b, 1) == b.
func Lerp(a, b Vec2, t float64) Vec2 {
	t = clamp01(t)
	return Vec2{
		X: a.X*(1-t) + b.X*t,
		Y: a.Y*(1-t) + b.Y*t,
	}
}

// Frame is what one Advance produced for the renderer.
type Frame struct {
	Visible          Vec2
	Position         Vec2
	ScaleX           float64
	Animation        string
	AnimationChanged bool
}

// Model smooths a participant between network position updates.
type Model struct {
	position Vec2
	previous Vec2
	t        float64
	scaleX   float64

	animation         string
	previousAnimation string

	dirty bool
}

func (m *Model) Position() Vec2    { return m.position }
func (m *Model) Previous() Vec2    { return m.previous }
func (m *Model) T() float64        { return m.t }
func (m *Model) ScaleX() float64   { return m.scaleX }
func (m *Model) Animation() string { return m.animation }
func (m *Model) Dirty() bool       { return m.dirty }

func (m *Model) Visible() Vec2 {
	return Lerp(m.previous, m.position, m.t)
}

func (m *Model) SetPosition(p Vec2) {
	m.previous = m.position
	m.position = p
	m.t = 0

	if p.X != m.previous.X {
		if p.X < m.previous.X {
			m.scaleX = -1
		} else {
			m.scaleX = 1
		}
	}
	if p != m.previous {
		m.dirty = true
	}
}

// Place teleports without interpolation.
func (m *Model) Place(p Vec2) {
	m.position = p
	m.previous = p
	m.t = 1
	m.dirty = true
}

func (m *Model) SetAnimation(name string) {
	m.previousAnimation = m.animation
	m.animation = name
	if m.previousAnimation != m.animation {
		m.dirty = true
	}
}

// MarkDirty forces the next Advance to emit a frame.
func (m *Model) MarkDirty() {
	m.dirty = true
}

func (m *Model) Advance(step float64) (Frame, bool) {
	if !m.dirty {
		return Frame{}, false
	}

	used := m.t
	frame := Frame{
		Visible:   Lerp(m.previous, m.position, used),
		Position:  m.position,
		ScaleX:    m.scaleX,
		Animation: m.animation,
	}

	m.t = clamp01(m.t + step)
	if 1-m.t < 1e-9 {
		m.t = 1
	}

	if m.animation != m.previousAnimation {
		frame.AnimationChanged = true
		m.previousAnimation = m.animation
	}

	m.dirty = used < 1
	return frame, true
}

func NewModel() *Model {
	return &Model{
		t:                 1,
		scaleX:            1,
		animation:         ANIMATION_IDLE,
		previousAnimation: ANIMATION_IDLE,
		dirty:             true,
	}
}
