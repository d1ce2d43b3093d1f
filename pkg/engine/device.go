// Package engine defines the boundary to the external ray tracing engine:
// a small create/set/commit vocabulary over opaque object handles.
package engine

import (
	"errors"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/google/uuid"
)

// Device errors.
var (
	ErrRejected      = errors.New("engine rejected object type")
	ErrUnknownHandle = errors.New("unknown engine handle")
	ErrReleased      = errors.New("engine object already released")
)

// Handle is an opaque reference to an engine object. The zero Handle refers
// to nothing.
type Handle struct {
	id uuid.UUID
}

// NilHandle is the zero Handle.
var NilHandle Handle

// IsNil reports whether h refers to nothing.
func (h Handle) IsNil() bool {
	return h.id == uuid.Nil
}

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return h.id.String()
}

// DataType names the element type of a data array.
type DataType string

// Data element types.
const (
	DataFloat  DataType = "float"
	DataFloat2 DataType = "float2"
	DataFloat3 DataType = "float3"
	DataFloat4 DataType = "float4"
	DataInt    DataType = "int"
	DataInt3   DataType = "int3"
	DataInt4   DataType = "int4"
	DataObject DataType = "object"
)

// Device is the engine object API. Creation and commit can fail; setters
// are recorded on the object and validated when it is committed.
type Device interface {
	NewGeometry(kind string) (Handle, error)
	NewMaterial(renderer, kind string) (Handle, error)
	NewLight(renderer, kind string) (Handle, error)
	NewTexture(format string, width, height int, data []byte) (Handle, error)
	// NewData wraps a slice of n elements of the given type. Supported
	// values are []float32, []int32, []math.Vec2, []math.Vec3, []math.Vec4,
	// []math.Vec3i, []math.Vec4i and []Handle.
	NewData(typ DataType, n int, values any) (Handle, error)
	NewModel() (Handle, error)
	NewRenderer(kind string) (Handle, error)
	NewInstance(model Handle, xfm math.Affine3) (Handle, error)

	SetData(obj Handle, slot string, data Handle)
	SetObject(obj Handle, slot string, value Handle)
	SetString(obj Handle, name, value string)
	SetInt(obj Handle, name string, value int32)
	SetFloat(obj Handle, name string, value float32)
	SetVec2(obj Handle, name string, value math.Vec2)
	SetVec3(obj Handle, name string, value math.Vec3)
	SetVec4(obj Handle, name string, value math.Vec4)

	AddGeometry(model, geom Handle) error
	Commit(obj Handle) error
	Release(obj Handle) error
}
