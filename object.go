package evcore

// ObjectBase is the embeddable root of the object hierarchy: an id plus the
// EventLoop it belongs to. Signal connections and Timers key off this
// association to decide how a slot gets dispatched.
type ObjectBase struct {
	id   Id
	loop *EventLoop
}

// Initializer is implemented by object types that need to run setup after
// their ObjectBase has been wired to a loop but before MakeObject returns
// them to the caller. Init runs on no particular goroutine; it must not
// block on the loop it was just given.
type Initializer interface {
	Init()
}

// ObjectType is implemented by anything with an ObjectBase, letting
// package-level helpers like ConnectMethod accept either a *ObjectBase
// directly or any object type that embeds one. objectGate is unexported,
// so the only implementation is ObjectBase's own: a type in any package
// satisfies ObjectType by embedding ObjectBase (the method is promoted),
// but can never write the method name itself to implement ObjectType some
// other way, and can never populate id/loop on its own, since
// newObjectBase is unexported.
type ObjectType interface {
	objectGate() *ObjectBase
}

func (o *ObjectBase) objectGate() *ObjectBase { return o }

// GetId returns the object's unique, immutable id.
func (o *ObjectBase) GetId() Id { return o.id }

// GetEventLoop returns the loop this object is attached to.
func (o *ObjectBase) GetEventLoop() *EventLoop { return o.loop }

func newObjectBase(loop *EventLoop) ObjectBase {
	return ObjectBase{id: newObjectId(), loop: loop}
}

// MakeObject constructs a T attached to loop: it allocates the value via
// ctor, then, if T implements Initializer, calls Init. ctor is expected to
// embed ObjectBase by value and populate it with newObjectBase(loop) (or,
// more commonly, by calling a constructor of its own that does so) before
// returning; MakeObject does not reach into T to fix up the embedded field
// itself, since T's layout is opaque to this generic function.
//
// Object types in this package (Timer) follow this pattern: their own
// constructors take a *EventLoop and call MakeObject with a ctor that
// builds their ObjectBase via newObjectBase.
func MakeObject[T Initializer](ctor func() T) T {
	obj := ctor()
	obj.Init()
	return obj
}
