package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/google/uuid"
)

// Object kinds tracked by the Recorder.
const (
	KindGeometry = "geometry"
	KindMaterial = "material"
	KindLight    = "light"
	KindTexture  = "texture"
	KindData     = "data"
	KindModel    = "model"
	KindRenderer = "renderer"
	KindInstance = "instance"
)

// Op is one recorded device call.
type Op struct {
	Name   string
	Target Handle
	Slot   string
	Value  any
}

func (o Op) String() string {
	if o.Slot == "" {
		return fmt.Sprintf("%s(%s)", o.Name, o.Target)
	}
	return fmt.Sprintf("%s(%s, %s)", o.Name, o.Target, o.Slot)
}

// Object is the recorded state of one engine object.
type Object struct {
	Kind       string
	Type       string
	Renderer   string
	Params     map[string]any
	Geometries []Handle
	Commits    int
	Released   bool

	// Data arrays only.
	DataType DataType
	Len      int
	Values   any
}

// Recorder is an in-memory Device that records every call. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	objects map[Handle]*Object
	ops     []Op
	reject  map[string]bool
	errs    []error
}

var _ Device = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		objects: make(map[Handle]*Object),
		reject:  make(map[string]bool),
	}
}

// RejectMaterials makes NewMaterial fail for the given material types.
func (r *Recorder) RejectMaterials(kinds ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.reject[k] = true
	}
}

// Ops returns a copy of the recorded calls in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ops)
}

// CountOps returns how many calls with the given name were recorded.
func (r *Recorder) CountOps(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Name == name {
			n++
		}
	}
	return n
}

// Object returns a snapshot of the object behind h.
func (r *Recorder) Object(h Handle) (Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[h]
	if !ok {
		return Object{}, false
	}
	cp := *obj
	cp.Params = make(map[string]any, len(obj.Params))
	for k, v := range obj.Params {
		cp.Params[k] = v
	}
	cp.Geometries = slices.Clone(obj.Geometries)
	return cp, true
}

// Param returns a parameter value set on h.
func (r *Recorder) Param(h Handle, name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[h]
	if !ok {
		return nil, false
	}
	v, ok := obj.Params[name]
	return v, ok
}

// Handles returns the live objects of a kind in creation order.
func (r *Recorder) Handles(kind string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handle
	for _, op := range r.ops {
		if op.Name != "New" {
			continue
		}
		if obj := r.objects[op.Target]; obj != nil && obj.Kind == kind && !obj.Released {
			out = append(out, op.Target)
		}
	}
	return out
}

// Count returns the number of live objects of a kind.
func (r *Recorder) Count(kind string) int {
	return len(r.Handles(kind))
}

// Errors returns misuse detected by setters, such as setting a parameter
// on an unknown or released handle.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

func (r *Recorder) create(obj *Object) Handle {
	h := Handle{id: uuid.New()}
	if obj.Params == nil {
		obj.Params = make(map[string]any)
	}
	r.objects[h] = obj
	r.ops = append(r.ops, Op{Name: "New", Target: h, Slot: obj.Kind, Value: obj.Type})
	return h
}

// lookup returns the live object behind h. The caller holds r.mu.
func (r *Recorder) lookup(h Handle) (*Object, error) {
	obj, ok := r.objects[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if obj.Released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, h)
	}
	return obj, nil
}

func (r *Recorder) NewGeometry(kind string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(&Object{Kind: KindGeometry, Type: kind}), nil
}

func (r *Recorder) NewMaterial(renderer, kind string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject[kind] {
		r.ops = append(r.ops, Op{Name: "Reject", Slot: KindMaterial, Value: kind})
		return NilHandle, fmt.Errorf("%w: material %q for renderer %q", ErrRejected, kind, renderer)
	}
	return r.create(&Object{Kind: KindMaterial, Type: kind, Renderer: renderer}), nil
}

func (r *Recorder) NewLight(renderer, kind string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(&Object{Kind: KindLight, Type: kind, Renderer: renderer}), nil
}

func (r *Recorder) NewTexture(format string, width, height int, data []byte) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if format == "" {
		return NilHandle, fmt.Errorf("%w: texture without format", ErrRejected)
	}
	return r.create(&Object{
		Kind:   KindTexture,
		Type:   format,
		Params: map[string]any{"size": [2]int{width, height}},
		Len:    len(data),
		Values: data,
	}), nil
}

func (r *Recorder) NewData(typ DataType, n int, values any) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if got := dataLen(values); got != n {
		return NilHandle, fmt.Errorf("data %s: %d elements given, %d declared", typ, got, n)
	}
	return r.create(&Object{Kind: KindData, Type: string(typ), DataType: typ, Len: n, Values: values}), nil
}

func dataLen(values any) int {
	switch v := values.(type) {
	case []float32:
		return len(v)
	case []int32:
		return len(v)
	case []math.Vec2:
		return len(v)
	case []math.Vec3:
		return len(v)
	case []math.Vec4:
		return len(v)
	case []math.Vec3i:
		return len(v)
	case []math.Vec4i:
		return len(v)
	case []Handle:
		return len(v)
	}
	return -1
}

func (r *Recorder) NewModel() (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(&Object{Kind: KindModel}), nil
}

func (r *Recorder) NewRenderer(kind string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(&Object{Kind: KindRenderer, Type: kind}), nil
}

func (r *Recorder) NewInstance(model Handle, xfm math.Affine3) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lookup(model); err != nil {
		return NilHandle, err
	}
	return r.create(&Object{
		Kind:   KindInstance,
		Params: map[string]any{"model": model, "xfm": xfm},
	}), nil
}

func (r *Recorder) set(name string, obj Handle, slot string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Name: name, Target: obj, Slot: slot, Value: value})
	o, err := r.lookup(obj)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s %q: %w", name, slot, err))
		return
	}
	o.Params[slot] = value
}

func (r *Recorder) SetData(obj Handle, slot string, data Handle) {
	r.set("SetData", obj, slot, data)
}

func (r *Recorder) SetObject(obj Handle, slot string, value Handle) {
	r.set("SetObject", obj, slot, value)
}

func (r *Recorder) SetString(obj Handle, name, value string) {
	r.set("SetString", obj, name, value)
}

func (r *Recorder) SetInt(obj Handle, name string, value int32) {
	r.set("SetInt", obj, name, value)
}

func (r *Recorder) SetFloat(obj Handle, name string, value float32) {
	r.set("SetFloat", obj, name, value)
}

func (r *Recorder) SetVec2(obj Handle, name string, value math.Vec2) {
	r.set("SetVec2", obj, name, value)
}

func (r *Recorder) SetVec3(obj Handle, name string, value math.Vec3) {
	r.set("SetVec3", obj, name, value)
}

func (r *Recorder) SetVec4(obj Handle, name string, value math.Vec4) {
	r.set("SetVec4", obj, name, value)
}

func (r *Recorder) AddGeometry(model, geom Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Name: "AddGeometry", Target: model, Value: geom})
	m, err := r.lookup(model)
	if err != nil {
		return err
	}
	if _, err := r.lookup(geom); err != nil {
		return err
	}
	m.Geometries = append(m.Geometries, geom)
	return nil
}

func (r *Recorder) Commit(obj Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Name: "Commit", Target: obj})
	o, err := r.lookup(obj)
	if err != nil {
		return err
	}
	o.Commits++
	return nil
}

func (r *Recorder) Release(obj Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Name: "Release", Target: obj})
	o, err := r.lookup(obj)
	if err != nil {
		return err
	}
	o.Released = true
	return nil
}
