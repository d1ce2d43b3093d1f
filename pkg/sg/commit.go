package sg

import (
	"context"
	"fmt"

	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/math"
	"go.uber.org/zap"
)

// State is a node's position in the commit life cycle.
type State int

// Commit states.
const (
	// StateUncommitted nodes have never been committed.
	StateUncommitted State = iota
	// StateClean nodes match their engine object.
	StateClean
	// StateStale nodes, or a descendant, changed since the last commit.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUncommitted:
		return "uncommitted"
	case StateClean:
		return "clean"
	case StateStale:
		return "stale"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Capability is the engine side of a node. Nodes without one are plain
// values that push themselves into the nearest ancestor owning an engine
// object.
type Capability interface {
	// NeedsRecreate reports whether the existing engine object can no
	// longer represent the node, for example after a type change.
	NeedsRecreate(rc *RenderContext, n *Node) bool
	// CreateEngineObject makes a new engine object for n.
	CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error)
	// PushParameters runs after the children were committed and sets what
	// the children cannot set themselves.
	PushParameters(rc *RenderContext, n *Node) error
}

// Scoper is implemented by capabilities that change the render context
// for their subtree. Enter runs before the children are committed and Exit
// after the node's parameters were pushed.
type Scoper interface {
	Enter(rc *RenderContext, n *Node)
	Exit(rc *RenderContext, n *Node)
}

// RenderContext carries the device and the state passed down while
// committing a tree.
type RenderContext struct {
	Device engine.Device
	Log    *zap.Logger

	// RendererType is the kind of the renderer being committed; materials
	// and lights are created for it.
	RendererType string
}

// NewRenderContext creates a context for dev. A nil logger disables
// logging.
func NewRenderContext(dev engine.Device, log *zap.Logger) *RenderContext {
	if log == nil {
		log = zap.NewNop()
	}
	return &RenderContext{Device: dev, Log: log, RendererType: "scivis"}
}

// State reports the node's commit state.
func (n *Node) State() State {
	switch {
	case n.lastCommitted == 0:
		return StateUncommitted
	case n.lastModified > n.lastCommitted || n.childrenMTime > n.lastCommitted:
		return StateStale
	default:
		return StateClean
	}
}

// Commit brings the engine objects of n and its descendants up to date.
// Clean subtrees are skipped. An engine object is created when a node has
// none or its capability asks for a new one; otherwise only parameters
// are pushed.
func (n *Node) Commit(ctx context.Context, rc *RenderContext) error {
	return n.commit(ctx, rc, false)
}

// commit with force set re-pushes a clean subtree, which is needed when the
// engine object it pushes into was just recreated.
func (n *Node) commit(ctx context.Context, rc *RenderContext, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !force && n.State() == StateClean {
		return nil
	}

	recreated := false
	if n.cap != nil && (n.handle.IsNil() || n.cap.NeedsRecreate(rc, n)) {
		if !n.handle.IsNil() {
			if err := rc.Device.Release(n.handle); err != nil {
				rc.Log.Debug("releasing engine object", zap.String("node", n.Path()), zap.Error(err))
			}
		}
		h, err := n.cap.CreateEngineObject(rc, n)
		if err != nil {
			n.handle = engine.NilHandle
			return fmt.Errorf("creating %s: %w", n.Path(), err)
		}
		n.handle = h
		recreated = true
		rc.Log.Debug("created engine object",
			zap.String("node", n.Path()),
			zap.String("type", n.typ),
			zap.Stringer("handle", h))
	}

	if s, ok := n.cap.(Scoper); ok {
		s.Enter(rc, n)
		defer s.Exit(rc, n)
	}

	for _, c := range n.children {
		if err := c.commit(ctx, rc, force || recreated); err != nil {
			return err
		}
	}

	if n.cap != nil {
		if err := n.cap.PushParameters(rc, n); err != nil {
			return fmt.Errorf("committing %s: %w", n.Path(), err)
		}
		if err := rc.Device.Commit(n.handle); err != nil {
			return fmt.Errorf("committing %s: %w", n.Path(), err)
		}
	} else if owner := n.owner(); owner != nil {
		pushValue(rc.Device, owner.handle, n.name, n.value)
	}

	n.lastCommitted = now()
	return nil
}

// owner returns the nearest ancestor with an engine object.
func (n *Node) owner() *Node {
	for p := n.parent; p != nil; p = p.parent {
		if !p.handle.IsNil() {
			return p
		}
	}
	return nil
}

// Release drops the engine objects of n and its descendants. The nodes
// become uncommitted.
func (n *Node) Release(rc *RenderContext) error {
	var firstErr error
	n.Walk(func(c *Node) bool {
		if !c.handle.IsNil() {
			if err := rc.Device.Release(c.handle); err != nil && firstErr == nil {
				firstErr = err
			}
			c.handle = engine.NilHandle
		}
		c.lastCommitted = 0
		return true
	})
	return firstErr
}

// pushValue sets a plain value on obj. Boxes become name.lower and
// name.upper; unsupported values are ignored.
func pushValue(dev engine.Device, obj engine.Handle, name string, value any) {
	switch v := value.(type) {
	case float32:
		dev.SetFloat(obj, name, v)
	case float64:
		dev.SetFloat(obj, name, float32(v))
	case int:
		dev.SetInt(obj, name, int32(v))
	case int32:
		dev.SetInt(obj, name, v)
	case bool:
		b := int32(0)
		if v {
			b = 1
		}
		dev.SetInt(obj, name, b)
	case string:
		dev.SetString(obj, name, v)
	case math.Vec2:
		dev.SetVec2(obj, name, v)
	case math.Vec3:
		dev.SetVec3(obj, name, v)
	case math.Vec4:
		dev.SetVec4(obj, name, v)
	case math.Box3:
		dev.SetVec3(obj, name+".lower", v.Lower)
		dev.SetVec3(obj, name+".upper", v.Upper)
	case engine.Handle:
		dev.SetObject(obj, name, v)
	}
}
