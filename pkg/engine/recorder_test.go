package engine

import (
	"sync"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Nil(t *testing.T) {
	assert.True(t, NilHandle.IsNil())
	assert.Equal(t, "nil", NilHandle.String())

	r := NewRecorder()
	h, err := r.NewModel()
	require.NoError(t, err)
	assert.False(t, h.IsNil())
	assert.NotEqual(t, "nil", h.String())
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := NewRecorder()

	geom, err := r.NewGeometry("triangles")
	require.NoError(t, err)
	pos, err := r.NewData(DataFloat3, 3, []math.Vec3{{}, {X: 1}, {Y: 1}})
	require.NoError(t, err)
	r.SetData(geom, "position", pos)
	r.SetFloat(geom, "radius", 0.5)
	require.NoError(t, r.Commit(geom))

	model, err := r.NewModel()
	require.NoError(t, err)
	require.NoError(t, r.AddGeometry(model, geom))
	require.NoError(t, r.Commit(model))

	obj, ok := r.Object(geom)
	require.True(t, ok)
	assert.Equal(t, KindGeometry, obj.Kind)
	assert.Equal(t, "triangles", obj.Type)
	assert.Equal(t, pos, obj.Params["position"])
	assert.Equal(t, float32(0.5), obj.Params["radius"])
	assert.Equal(t, 1, obj.Commits)

	m, _ := r.Object(model)
	assert.Equal(t, []Handle{geom}, m.Geometries)

	data, _ := r.Object(pos)
	assert.Equal(t, 3, data.Len)
	assert.Equal(t, DataFloat3, data.DataType)

	assert.Equal(t, 1, r.Count(KindGeometry))
	assert.Equal(t, 2, r.CountOps("Commit"))
	assert.Empty(t, r.Errors())
}

func TestRecorder_RejectMaterials(t *testing.T) {
	r := NewRecorder()
	r.RejectMaterials("Velvet")

	_, err := r.NewMaterial("scivis", "Velvet")
	require.ErrorIs(t, err, ErrRejected)

	h, err := r.NewMaterial("scivis", "OBJMaterial")
	require.NoError(t, err)
	obj, _ := r.Object(h)
	assert.Equal(t, "scivis", obj.Renderer)
	assert.Equal(t, 1, r.Count(KindMaterial))
	assert.Equal(t, 1, r.CountOps("Reject"))
}

func TestRecorder_Misuse(t *testing.T) {
	r := NewRecorder()

	r.SetInt(NilHandle, "spp", 1)
	require.Len(t, r.Errors(), 1)
	assert.ErrorIs(t, r.Errors()[0], ErrUnknownHandle)

	h, err := r.NewLight("scivis", "DirectionalLight")
	require.NoError(t, err)
	require.NoError(t, r.Release(h))
	assert.ErrorIs(t, r.Commit(h), ErrReleased)
	assert.ErrorIs(t, r.Release(h), ErrReleased)
	assert.Equal(t, 0, r.Count(KindLight))

	_, err = r.NewData(DataInt, 4, []int32{1, 2})
	assert.Error(t, err)

	_, err = r.NewInstance(h, math.Identity())
	assert.ErrorIs(t, err, ErrReleased)

	_, err = r.NewTexture("", 1, 1, []byte{0})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRecorder_ObjectIsSnapshot(t *testing.T) {
	r := NewRecorder()
	h, _ := r.NewRenderer("scivis")
	r.SetString(h, "name", "a")

	obj, _ := r.Object(h)
	obj.Params["name"] = "changed"

	v, ok := r.Param(h, "name")
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()
	model, _ := r.NewModel()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.NewGeometry("spheres")
			if err != nil {
				t.Error(err)
				return
			}
			r.SetFloat(g, "radius", 1)
			if err := r.AddGeometry(model, g); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	m, _ := r.Object(model)
	assert.Len(t, m.Geometries, 16)
	assert.Equal(t, 16, r.Count(KindGeometry))
}
