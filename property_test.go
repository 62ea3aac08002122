package evcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyAssign(t *testing.T) {
	x := NewProperty(2)
	assert.Equal(t, 2, x.Get())

	require.NoError(t, x.Assign(3))
	assert.Equal(t, 3, x.Get())
}

func TestPropertyTopologicalUpdate(t *testing.T) {
	x := NewProperty(2.0)
	y := NewProperty(4.0)

	hypEvals := 0
	hyp := NewBoundProperty(func() float64 {
		hypEvals++
		return math.Sqrt(x.Get()*x.Get() + y.Get()*y.Get())
	})

	pEvals := 0
	p := NewBoundProperty(func() float64 {
		pEvals++
		return x.Get() + y.Get() + hyp.Get()
	})
	_ = p

	require.NoError(t, x.Assign(3))

	assert.Equal(t, 2, hypEvals)
	assert.Equal(t, 2, pEvals)
}

func TestPropertyGlitchFreedom(t *testing.T) {
	a := NewProperty(1)
	b := NewBoundProperty(func() int { return a.Get() * 1 })

	var recorded []int
	c := NewProperty(0)
	c.SetNotifier(func(v int) { recorded = append(recorded, v) })
	require.NoError(t, c.Bind(func() int { return a.Get() + b.Get() }))

	require.NoError(t, a.Assign(2))

	assert.Equal(t, []int{2, 4}, recorded)
	assert.NotContains(t, recorded, 3)
}

func TestPropertyCycleRejection(t *testing.T) {
	a := NewProperty(1)
	d := NewProperty(0)

	b := NewBoundProperty(func() int { return a.Get() + d.Get() })
	c := NewBoundProperty(func() int { return b.Get() })

	err := d.Bind(func() int { return c.Get() })
	assert.ErrorIs(t, err, ErrBindingCycle)
	assert.Empty(t, d.GetInputs())
	assert.False(t, d.GetBindingValid())
}

func TestPropertySelfReference(t *testing.T) {
	a := NewProperty(1)
	err := a.Bind(func() int { return a.Get() + 1 })
	assert.ErrorIs(t, err, ErrBindingCycle)
	assert.Equal(t, 1, a.Get())
}

func TestPropertyReadOnly(t *testing.T) {
	x := NewProperty(5)
	ro := x.ReadOnly()

	assert.Equal(t, 5, ro.Get())
	require.NoError(t, x.Assign(6))
	assert.Equal(t, 6, ro.Get())
}

func TestPropertyRebindDiscardsOldInputs(t *testing.T) {
	a := NewProperty(1)
	b := NewProperty(2)

	c := NewBoundProperty(func() int { return a.Get() })
	require.Len(t, c.GetInputs(), 1)

	require.NoError(t, c.Bind(func() int { return b.Get() }))
	inputs := c.GetInputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, 2, c.Get())
}
