// Package sg is the scene graph: a typed property tree whose nodes lazily
// create and update the engine objects they stand for.
package sg

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/math"
)

// Flags mark how a node's value is validated and presented.
type Flags uint32

// Node flags.
const (
	Required Flags = 1 << iota
	ValidMinMax
	ValidWhitelist
	GUIColor
	GUISlider
)

// Validation errors returned by Verify.
var (
	ErrMissingValue = errors.New("required value missing")
	ErrOutOfRange   = errors.New("value out of range")
	ErrNotAllowed   = errors.New("value not in whitelist")
)

// clock hands out modification and commit times. It only moves forward, so
// any two events are ordered even within the same nanosecond.
var clock atomic.Uint64

func now() uint64 {
	return clock.Add(1)
}

// Node is one entry in the scene graph. Children keep insertion order and
// are unique by name.
type Node struct {
	name  string
	typ   string
	value any

	parent   *Node
	children []*Node
	index    map[string]int

	flags     Flags
	min, max  any
	whitelist []any

	// Documentation describes the node for editors.
	Documentation string

	lastModified  uint64
	childrenMTime uint64
	lastCommitted uint64

	handle engine.Handle
	cap    Capability
}

// New creates a detached node.
func New(name, typ string, value any) *Node {
	t := now()
	return &Node{
		name:          name,
		typ:           typ,
		value:         value,
		lastModified:  t,
		childrenMTime: t,
	}
}

func (n *Node) Name() string { return n.name }
func (n *Node) Type() string { return n.typ }
func (n *Node) Value() any   { return n.value }
func (n *Node) Parent() *Node {
	return n.parent
}

// Handle returns the engine object the node created, if any.
func (n *Node) Handle() engine.Handle {
	return n.handle
}

// Capability returns the engine behavior attached to the node.
func (n *Node) Capability() Capability {
	return n.cap
}

// SetCapability attaches engine behavior to the node.
func (n *Node) SetCapability(c Capability) *Node {
	n.cap = c
	n.MarkModified()
	return n
}

func (n *Node) String() string {
	return fmt.Sprintf("%s<%s>", n.name, n.typ)
}

// Path returns the names from the root to n joined by slashes.
func (n *Node) Path() string {
	var parts []string
	for p := n; p != nil; p = p.parent {
		parts = append(parts, p.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// SetValue stores v and marks the node modified, unless v equals the
// current value.
func (n *Node) SetValue(v any) {
	if reflect.DeepEqual(v, n.value) {
		return
	}
	n.value = v
	n.MarkModified()
}

// MarkModified stamps the node and tells every ancestor a child changed.
func (n *Node) MarkModified() {
	n.lastModified = now()
	if n.parent != nil {
		n.parent.setChildrenModified(n.lastModified)
	}
}

func (n *Node) setChildrenModified(t uint64) {
	if t <= n.childrenMTime {
		return
	}
	n.childrenMTime = t
	if n.parent != nil {
		n.parent.setChildrenModified(t)
	}
}

// LastModified returns when the node's own value last changed.
func (n *Node) LastModified() uint64 { return n.lastModified }

// ChildrenLastModified returns when any descendant last changed.
func (n *Node) ChildrenLastModified() uint64 { return n.childrenMTime }

// LastCommitted returns when the node was last committed, or 0.
func (n *Node) LastCommitted() uint64 { return n.lastCommitted }

// Flags returns the node flags.
func (n *Node) Flags() Flags { return n.flags }

// SetFlags replaces the node flags.
func (n *Node) SetFlags(f Flags) *Node {
	n.flags = f
	return n
}

// SetMinMax sets the valid range and the ValidMinMax flag.
func (n *Node) SetMinMax(min, max any) *Node {
	n.min, n.max = min, max
	n.flags |= ValidMinMax
	return n
}

// MinMax returns the valid range.
func (n *Node) MinMax() (min, max any) {
	return n.min, n.max
}

// SetWhitelist sets the allowed values and the ValidWhitelist flag.
func (n *Node) SetWhitelist(values ...any) *Node {
	n.whitelist = values
	n.flags |= ValidWhitelist
	return n
}

// Whitelist returns the allowed values.
func (n *Node) Whitelist() []any {
	return n.whitelist
}

// Add attaches child, replacing an existing child of the same name, and
// returns it.
func (n *Node) Add(child *Node) *Node {
	if child.parent != nil && child.parent != n {
		child.parent.Remove(child.name)
	}
	if n.index == nil {
		n.index = make(map[string]int)
	}
	if i, ok := n.index[child.name]; ok {
		n.children[i].parent = nil
		n.children[i] = child
	} else {
		n.index[child.name] = len(n.children)
		n.children = append(n.children, child)
	}
	child.parent = n
	n.setChildrenModified(now())
	return child
}

// CreateChild creates and adds a child node.
func (n *Node) CreateChild(name, typ string, value any) *Node {
	return n.Add(New(name, typ, value))
}

// Remove detaches the named child. It reports whether one existed.
func (n *Node) Remove(name string) bool {
	i, ok := n.index[name]
	if !ok {
		return false
	}
	n.children[i].parent = nil
	n.children = append(n.children[:i], n.children[i+1:]...)
	delete(n.index, name)
	for j := i; j < len(n.children); j++ {
		n.index[n.children[j].name] = j
	}
	n.setChildrenModified(now())
	return true
}

// Child returns the named child or nil.
func (n *Node) Child(name string) *Node {
	if i, ok := n.index[name]; ok {
		return n.children[i]
	}
	return nil
}

// HasChild reports whether a child with the given name exists.
func (n *Node) HasChild(name string) bool {
	_, ok := n.index[name]
	return ok
}

// ChildValue returns the value of the named child, or def if the child
// does not exist or holds no value.
func (n *Node) ChildValue(name string, def any) any {
	if c := n.Child(name); c != nil && c.value != nil {
		return c.value
	}
	return def
}

// Children returns the children in insertion order.
func (n *Node) Children() []*Node {
	return n.children
}

// Walk calls fn for n and every descendant, depth first. Returning false
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Verify checks the required, range and whitelist constraints of n and its
// descendants.
func (n *Node) Verify() error {
	var errs []error
	n.Walk(func(c *Node) bool {
		if err := c.verifySelf(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Path(), err))
		}
		return true
	})
	return errors.Join(errs...)
}

func (n *Node) verifySelf() error {
	if n.flags&Required != 0 && n.value == nil {
		return ErrMissingValue
	}
	if n.value == nil {
		return nil
	}
	if n.flags&ValidMinMax != 0 && (n.min != nil || n.max != nil) {
		if n.min != nil && less(n.value, n.min) {
			return fmt.Errorf("%w: %v < %v", ErrOutOfRange, n.value, n.min)
		}
		if n.max != nil && less(n.max, n.value) {
			return fmt.Errorf("%w: %v > %v", ErrOutOfRange, n.value, n.max)
		}
	}
	if n.flags&ValidWhitelist != 0 && len(n.whitelist) > 0 {
		for _, w := range n.whitelist {
			if reflect.DeepEqual(w, n.value) {
				return nil
			}
		}
		return fmt.Errorf("%w: %v", ErrNotAllowed, n.value)
	}
	return nil
}

// less compares numbers and vectors. Vectors compare component-wise: a is
// less than b if any component is.
func less(a, b any) bool {
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int32:
		if bv, ok := b.(int32); ok {
			return av < bv
		}
	case float32:
		if bv, ok := b.(float32); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case math.Vec2:
		if bv, ok := b.(math.Vec2); ok {
			return av.X < bv.X || av.Y < bv.Y
		}
	case math.Vec3:
		if bv, ok := b.(math.Vec3); ok {
			return av.X < bv.X || av.Y < bv.Y || av.Z < bv.Z
		}
	}
	return false
}
