package sg

import (
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_SetValueOnlyMarksChanges(t *testing.T) {
	n := New("Kd", "vec3f", math.Splat(0.5))
	before := n.LastModified()

	n.SetValue(math.Splat(0.5))
	assert.Equal(t, before, n.LastModified(), "same value must not mark modified")

	n.SetValue(math.Splat(0.7))
	assert.Greater(t, n.LastModified(), before)
	assert.Equal(t, math.Splat(0.7), n.Value())
}

func TestNode_ModificationPropagates(t *testing.T) {
	root := New("root", "Node", nil)
	mid := root.CreateChild("mid", "Node", nil)
	leaf := mid.CreateChild("leaf", "float", float32(1))
	rootOwn := root.LastModified()

	leaf.SetValue(float32(2))

	assert.Equal(t, leaf.LastModified(), mid.ChildrenLastModified())
	assert.Equal(t, leaf.LastModified(), root.ChildrenLastModified())
	assert.Equal(t, rootOwn, root.LastModified(), "ancestors only record child changes")
	assert.Equal(t, "root/mid/leaf", leaf.Path())
}

func TestNode_ChildrenKeepOrderAndUniqueNames(t *testing.T) {
	n := New("material", "Material", nil)
	n.CreateChild("b", "float", float32(1))
	n.CreateChild("a", "float", float32(2))
	n.CreateChild("c", "float", float32(3))
	n.CreateChild("a", "float", float32(4))

	var names []string
	for _, c := range n.Children() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
	assert.Equal(t, float32(4), n.ChildValue("a", nil))

	require.True(t, n.Remove("b"))
	assert.False(t, n.Remove("b"))
	assert.Equal(t, "a", n.Children()[0].Name())
	assert.Equal(t, float32(3), n.Child("c").Value(), "index must follow removal")
	assert.Nil(t, n.Child("b"))
	assert.Equal(t, "fallback", n.ChildValue("b", "fallback"))
}

func TestNode_AddMovesBetweenParents(t *testing.T) {
	a := New("a", "Node", nil)
	b := New("b", "Node", nil)
	c := a.CreateChild("c", "int", 1)

	b.Add(c)
	assert.False(t, a.HasChild("c"))
	assert.Same(t, b, c.Parent())
}

func TestNode_Verify(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Node)
		wantErr error
	}{
		{name: "defaults are valid"},
		{
			name:    "above max",
			setup:   func(r *Node) { r.Child("maxDepth").SetValue(1000) },
			wantErr: ErrOutOfRange,
		},
		{
			name:    "below min",
			setup:   func(r *Node) { r.Child("spp").SetValue(-9) },
			wantErr: ErrOutOfRange,
		},
		{
			name:    "not whitelisted",
			setup:   func(r *Node) { r.Child("rendererType").SetValue("raycast") },
			wantErr: ErrNotAllowed,
		},
		{
			name:    "missing required",
			setup:   func(r *Node) { r.Child("oneSidedLighting").SetValue(nil) },
			wantErr: ErrMissingValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer()
			if tt.setup != nil {
				tt.setup(r)
			}
			err := r.Verify()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNode_VerifyVectors(t *testing.T) {
	n := New("scale", "vec3f", math.Vec3{X: 1, Y: 1, Z: 1}).SetMinMax(math.Splat(0), math.Splat(10))
	assert.NoError(t, n.Verify())
	n.SetValue(math.Vec3{X: 1, Y: -1, Z: 1})
	assert.ErrorIs(t, n.Verify(), ErrOutOfRange)
}

func TestNodeList(t *testing.T) {
	var l NodeList
	a := l.Add(New("a", "Node", nil))
	b := l.Add(New("b", "Node", nil))
	l.Add(New("a", "Node", nil))

	assert.Equal(t, NodeID(0), a)
	assert.Equal(t, NodeID(1), b)
	assert.Equal(t, 3, l.Len())

	n, err := l.Get(b)
	require.NoError(t, err)
	assert.Equal(t, "b", n.Name())

	_, err = l.Get(3)
	assert.ErrorIs(t, err, ErrInvalidNodeID)
	_, err = l.Get(-1)
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	id, ok := l.Find("a")
	assert.True(t, ok)
	assert.Equal(t, NodeID(2), id)
	_, ok = l.Find("zzz")
	assert.False(t, ok)
}
