package evcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type initCountingObject struct {
	ObjectBase
	inits int
}

func (o *initCountingObject) Init() { o.inits++ }

func TestMakeObjectRunsInit(t *testing.T) {
	loop := NewEventLoop()
	obj := MakeObject(func() *initCountingObject {
		return &initCountingObject{ObjectBase: newObjectBase(loop)}
	})

	assert.Equal(t, 1, obj.inits)
	assert.Same(t, loop, obj.GetEventLoop())
}

func TestObjectIdsAreUnique(t *testing.T) {
	loop := NewEventLoop()
	a := NewTimer(loop)
	b := NewTimer(loop)

	assert.NotEqual(t, a.GetId(), b.GetId())
}

func TestEventLoopIdsAreUnique(t *testing.T) {
	a := NewEventLoop()
	b := NewEventLoop()

	assert.NotEqual(t, a.GetId(), b.GetId())
}
