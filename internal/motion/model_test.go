package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLerp(t *testing.T) {
	a, b := Vec2{X: 0.1, Y: -4}, Vec2{X: 0.3, Y: 12}

	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, b, Lerp(a, b, 7))
	assert.Equal(t, a, Lerp(a, b, -1))
	assert.InDelta(t, 4.0, Lerp(a, b, 0.5).Y, 1e-9)
}

func TestInterpolationConverges(t *testing.T) {
	m := NewModel()
	m.Place(Vec2{X: 0, Y: 0})
	_, _ = m.Advance(DEFAULT_STEP)

	target := Vec2{X: 96, Y: 32}
	m.SetPosition(target)
	require.True(t, m.Dirty())

	ticks := int(math.Ceil(1 / DEFAULT_STEP))
	prevT := m.T()
	for i := 0; i < ticks; i++ {
		_, ok := m.Advance(DEFAULT_STEP)
		require.True(t, ok)
		assert.Greater(t, m.T(), prevT)
		prevT = m.T()
	}

	assert.Equal(t, 1.0, m.T())
	assert.Equal(t, target, m.Visible())

	frame, ok := m.Advance(DEFAULT_STEP)
	require.True(t, ok)
	assert.Equal(t, target, frame.Visible)
	assert.Equal(t, 1.0, m.T())

	_, ok = m.Advance(DEFAULT_STEP)
	assert.False(t, ok, "converged model must stay clean")
}

func TestVisibleNeverOvershoots(t *testing.T) {
	m := NewModel()
	m.Place(Vec2{X: 10})
	m.SetPosition(Vec2{X: 20})

	for i := 0; i < 30; i++ {
		frame, ok := m.Advance(0.15)
		if !ok {
			break
		}
		assert.LessOrEqual(t, frame.Visible.X, 20.0)
		assert.GreaterOrEqual(t, frame.Visible.X, 10.0)
	}
	assert.Equal(t, Vec2{X: 20}, m.Visible())
}

func TestFacingFollowsHorizontalDirection(t *testing.T) {
	m := NewModel()
	m.Place(Vec2{X: 50, Y: 50})
	assert.Equal(t, 1.0, m.ScaleX())

	m.SetPosition(Vec2{X: 40, Y: 50})
	assert.Equal(t, -1.0, m.ScaleX())

	m.SetPosition(Vec2{X: 40, Y: 80})
	assert.Equal(t, -1.0, m.ScaleX(), "vertical moves keep facing")

	m.SetPosition(Vec2{X: 41, Y: 80})
	assert.Equal(t, 1.0, m.ScaleX())
}

func TestAnimationBoundaryReportedOnce(t *testing.T) {
	m := NewModel()
	m.Place(Vec2{})
	frame, ok := m.Advance(DEFAULT_STEP)
	require.True(t, ok)
	assert.False(t, frame.AnimationChanged)

	m.SetAnimation(ANIMATION_WALK)
	frame, ok = m.Advance(DEFAULT_STEP)
	require.True(t, ok)
	assert.True(t, frame.AnimationChanged)
	assert.Equal(t, ANIMATION_WALK, frame.Animation)

	m.SetAnimation(ANIMATION_WALK)
	_, ok = m.Advance(DEFAULT_STEP)
	assert.False(t, ok)

	m.SetAnimation(ANIMATION_IDLE)
	frame, ok = m.Advance(DEFAULT_STEP)
	require.True(t, ok)
	assert.True(t, frame.AnimationChanged)
	assert.Equal(t, ANIMATION_IDLE, frame.Animation)
}

func TestSamePositionIsNotDirty(t *testing.T) {
	m := NewModel()
	m.Place(Vec2{X: 5, Y: 5})
	_, _ = m.Advance(DEFAULT_STEP)

	m.SetPosition(Vec2{X: 5, Y: 5})
	assert.False(t, m.Dirty())
}
