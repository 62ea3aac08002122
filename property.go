package evcore

import "github.com/arfarley/evcore/internal/tlocal"

// visitState is the three-color marker used by the reverse-postorder
// topological sort that drives glitch-free propagation.
type visitState uint8

const (
	visitUnvisited visitState = iota
	visitVisiting
	visitFinished
)

// PropertyNode is the non-generic face of a Property[T], letting the
// dependency graph hold edges between properties of different value types.
// Its methods are unexported so only this package can satisfy it; the type
// itself is exported so GetInputs/GetOutputs can hand back useful values.
type PropertyNode interface {
	// Name returns the diagnostic name set via SetName, or "" if unset.
	Name() string

	evaluate()
	addInput(PropertyNode)
	removeInput(PropertyNode)
	addOutput(PropertyNode)
	removeOutput(PropertyNode)
	snapshotInputs() []PropertyNode
	snapshotOutputs() []PropertyNode
	visitState() visitState
	setVisitState(visitState)
	identity() PropertyNode
}

// Property is a reactive value cell of type T. Construct one with
// NewProperty (plain value) or NewBoundProperty (computed from other
// properties). The zero value is not usable.
type Property[T any] struct {
	value   T
	binding func() T
	bound   bool

	notifier func(T)

	inputs  []PropertyNode
	outputs []PropertyNode
	visit   visitState

	name string

	// capturedSelf is set by Get when this property is asked for its own
	// value while it is the goroutine's "currently evaluating" node: a
	// binding that reads itself is always a cycle.
	capturedSelf bool

	logger Logger
}

// NewProperty creates a property holding initial with no binding.
func NewProperty[T any](initial T) *Property[T] {
	return &Property[T]{value: initial, logger: defaultLogger}
}

// NewBoundProperty creates a property computed from binding, evaluating it
// immediately to capture its initial dependency set.
func NewBoundProperty[T any](binding func() T) *Property[T] {
	p := &Property[T]{logger: defaultLogger}
	_ = p.Bind(binding)
	return p
}

// GetName returns the diagnostic name set via SetName, or "" if unset.
func (p *Property[T]) GetName() string { return p.name }

// SetName attaches a diagnostic name, surfaced in PropertyNode.Name() and in
// cycle-rejection log lines.
func (p *Property[T]) SetName(name string) { p.name = name }

// SetNotifier installs fn to run with the new value after every successful
// Assign, Bind, or propagated recompute. Pass nil to remove it.
func (p *Property[T]) SetNotifier(fn func(T)) { p.notifier = fn }

// SetLogger overrides the property's diagnostic sink, used for rejected
// bindings.
func (p *Property[T]) SetLogger(l Logger) { p.logger = l }

// GetBindingValid reports whether this property currently has a live
// binding (as opposed to a plain assigned value, or a binding that was
// discarded for a cycle).
func (p *Property[T]) GetBindingValid() bool { return p.bound }

// GetInputs returns the properties this one currently depends on.
func (p *Property[T]) GetInputs() []PropertyNode {
	out := make([]PropertyNode, len(p.inputs))
	copy(out, p.inputs)
	return out
}

// GetOutputs returns the properties that currently depend on this one.
func (p *Property[T]) GetOutputs() []PropertyNode {
	out := make([]PropertyNode, len(p.outputs))
	copy(out, p.outputs)
	return out
}

// Get returns the current value, and, if called while another property on
// this goroutine is evaluating its binding, registers this property as one
// of its inputs.
func (p *Property[T]) Get() T {
	if cur, ok := tlocal.Get().(PropertyNode); ok && cur != nil {
		if cur.identity() == p.identity() {
			p.capturedSelf = true
		} else {
			cur.addInput(p.identity())
			p.addOutput(cur)
		}
	}
	return p.value
}

// Assign sets the value directly, detaching any existing binding, then
// propagates the change to dependents.
func (p *Property[T]) Assign(v T) error {
	p.detachInputs()
	p.binding = nil
	p.bound = false

	old := p.value
	p.value = v

	return p.finishUpdate(old)
}

// Bind installs binding as this property's value source and evaluates it
// immediately. If doing so would create a dependency cycle (including a
// direct self-reference), the binding is discarded, the previous value is
// retained, and ErrBindingCycle is returned.
func (p *Property[T]) Bind(binding func() T) error {
	p.detachInputs()

	old := p.value
	oldBinding, oldBound := p.binding, p.bound
	p.binding = binding

	if !p.evaluateCapturing() {
		p.binding, p.bound = oldBinding, oldBound
		p.detachInputs()
		p.value = old
		p.logger.Printf("evcore: property %q binding rejected: self-dependency", p.name)
		return ErrBindingCycle
	}
	p.bound = true

	if err := p.finishUpdate(old); err != nil {
		p.binding, p.bound = oldBinding, oldBound
		p.detachInputs()
		p.value = old
		return err
	}
	return nil
}

// ReadOnly returns a view of p that exposes only the read side of the
// Property API.
func (p *Property[T]) ReadOnly() *ReadOnlyProperty[T] {
	return &ReadOnlyProperty[T]{p: p}
}

// ReadOnlyProperty is a Property with Assign/Bind removed from its public
// surface. It shares storage with the underlying Property: writes made
// through the original still propagate here.
type ReadOnlyProperty[T any] struct {
	p *Property[T]
}

func (r *ReadOnlyProperty[T]) Get() T                     { return r.p.Get() }
func (r *ReadOnlyProperty[T]) GetBindingValid() bool      { return r.p.GetBindingValid() }
func (r *ReadOnlyProperty[T]) GetInputs() []PropertyNode  { return r.p.GetInputs() }
func (r *ReadOnlyProperty[T]) GetOutputs() []PropertyNode { return r.p.GetOutputs() }
func (r *ReadOnlyProperty[T]) GetName() string            { return r.p.GetName() }

// evaluateCapturing runs the binding with this property installed as the
// goroutine's "currently evaluating" node, so nested Get calls record
// dependency edges. Returns false if the binding read its own property.
func (p *Property[T]) evaluateCapturing() bool {
	p.capturedSelf = false
	var result T
	tlocal.With(p.identity(), func() {
		result = p.binding()
	})
	if p.capturedSelf {
		return false
	}
	p.value = result
	return true
}

// evaluate is the PropertyNode hook invoked by the propagation sweep: it
// discards the current input set, re-runs the binding (recapturing
// dependencies, which may differ from the previous run if the binding is
// conditional), and stores the result. Called only for bound properties
// reachable from a changed root; a property with no binding never appears
// in a propagation sweep's non-root positions because nothing would have
// it as an output.
func (p *Property[T]) evaluate() {
	if p.binding == nil {
		return
	}
	p.detachInputs()
	if !p.evaluateCapturing() {
		// A structural cycle should already have been rejected at Bind
		// time; reaching this during propagation would mean the graph
		// changed shape underneath us, which the single-goroutine
		// confinement invariant rules out. Treat defensively: drop the
		// binding rather than leave a stale value silently uncorrected.
		p.binding = nil
		p.bound = false
		p.logger.Printf("evcore: property %q binding self-referenced during propagation", p.name)
		return
	}
	if p.notifier != nil {
		p.notifier(p.value)
	}
}

// finishUpdate runs the notifier, topologically sorts the outputs graph
// reachable from p, rejects the whole update if that graph is cyclic, and
// otherwise evaluates every other reachable node exactly once.
func (p *Property[T]) finishUpdate(oldValue T) error {
	order, cyclic := topoSortOutputs(p.identity())
	if cyclic {
		resetVisitStates(order)
		p.logger.Printf("evcore: property %q update rejected: dependency cycle", p.name)
		return ErrBindingCycle
	}

	if p.notifier != nil {
		p.notifier(p.value)
	}

	for _, node := range order {
		if node.identity() == p.identity() {
			continue
		}
		node.evaluate()
	}
	resetVisitStates(order)
	return nil
}

func (p *Property[T]) detachInputs() {
	for _, in := range p.inputs {
		in.removeOutput(p.identity())
	}
	p.inputs = nil
}

func (p *Property[T]) Name() string { return p.name }

func (p *Property[T]) identity() PropertyNode { return p }

func (p *Property[T]) addInput(n PropertyNode) {
	for _, existing := range p.inputs {
		if existing.identity() == n.identity() {
			return
		}
	}
	p.inputs = append(p.inputs, n)
}

func (p *Property[T]) removeInput(n PropertyNode) {
	for i, existing := range p.inputs {
		if existing.identity() == n.identity() {
			p.inputs = append(p.inputs[:i], p.inputs[i+1:]...)
			return
		}
	}
}

func (p *Property[T]) addOutput(n PropertyNode) {
	for _, existing := range p.outputs {
		if existing.identity() == n.identity() {
			return
		}
	}
	p.outputs = append(p.outputs, n)
}

func (p *Property[T]) removeOutput(n PropertyNode) {
	for i, existing := range p.outputs {
		if existing.identity() == n.identity() {
			p.outputs = append(p.outputs[:i], p.outputs[i+1:]...)
			return
		}
	}
}

func (p *Property[T]) snapshotInputs() []PropertyNode  { return append([]PropertyNode(nil), p.inputs...) }
func (p *Property[T]) snapshotOutputs() []PropertyNode { return append([]PropertyNode(nil), p.outputs...) }

func (p *Property[T]) visitState() visitState        { return p.visit }
func (p *Property[T]) setVisitState(v visitState)     { p.visit = v }

// topoSortOutputs performs a reverse-postorder DFS over the outputs graph
// rooted at root, returning nodes in the order they should be evaluated
// (root first, each dependency before its dependents) and whether a cycle
// was encountered. On a cycle it returns the nodes visited so far, all left
// in a non-unvisited state, for the caller to reset.
func topoSortOutputs(root PropertyNode) ([]PropertyNode, bool) {
	var postorder []PropertyNode
	var visited []PropertyNode
	cyclic := false

	var visit func(n PropertyNode)
	visit = func(n PropertyNode) {
		if cyclic {
			return
		}
		switch n.visitState() {
		case visitFinished:
			return
		case visitVisiting:
			cyclic = true
			return
		}
		n.setVisitState(visitVisiting)
		visited = append(visited, n)
		for _, out := range n.snapshotOutputs() {
			visit(out)
			if cyclic {
				return
			}
		}
		n.setVisitState(visitFinished)
		postorder = append(postorder, n)
	}
	visit(root)

	if cyclic {
		return visited, true
	}

	order := make([]PropertyNode, len(postorder))
	for i, n := range postorder {
		order[len(postorder)-1-i] = n
	}
	return order, false
}

func resetVisitStates(nodes []PropertyNode) {
	for _, n := range nodes {
		n.setVisitState(visitUnvisited)
	}
}
