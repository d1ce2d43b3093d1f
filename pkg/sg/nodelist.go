package sg

import (
	"errors"
	"fmt"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
)

// ErrInvalidNodeID is returned for handles outside a NodeList.
var ErrInvalidNodeID = errors.New("invalid node id")

// NodeID addresses a node in a NodeList.
type NodeID int

// NodeList is an arena of nodes addressed by the order they were added.
type NodeList struct {
	nodes []*Node
}

// Add appends n and returns its ID.
func (l *NodeList) Add(n *Node) NodeID {
	l.nodes = append(l.nodes, n)
	return NodeID(len(l.nodes) - 1)
}

// Get returns the node with the given ID.
func (l *NodeList) Get(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(l.nodes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidNodeID, id, len(l.nodes))
	}
	return l.nodes[id], nil
}

// Len returns the number of nodes.
func (l *NodeList) Len() int {
	return len(l.nodes)
}

// Nodes returns all nodes in ID order.
func (l *NodeList) Nodes() []*Node {
	return l.nodes
}

// Find returns the ID of the most recently added node with the given name.
func (l *NodeList) Find(name string) (NodeID, bool) {
	for i := len(l.nodes) - 1; i >= 0; i-- {
		if l.nodes[i].name == name {
			return NodeID(i), true
		}
	}
	return -1, false
}

// BuildWorld turns an imported model into a world node. Materials are
// created once each under the world's "materials" group and shared by the
// meshes using them. Every instance becomes one mesh node; instances with
// a transform get a transformed copy of their mesh. Every created node is
// registered in l.
func BuildWorld(l *NodeList, name string, m *scene.Model) (*Node, error) {
	world := NewWorld(name)
	l.Add(world)
	group := world.CreateChild("materials", "Node", nil)
	l.Add(group)

	materials := make(map[*scene.Material]*Node)
	materialNode := func(mat *scene.Material) *Node {
		if mat == nil {
			return nil
		}
		if n, ok := materials[mat]; ok {
			return n
		}
		n := NewMaterialFrom(mat)
		n.name = uniqueName(group, mat.Name, "material")
		group.Add(n)
		l.Add(n)
		materials[mat] = n
		return n
	}

	for i, inst := range m.Instance {
		if inst.MeshID < 0 || inst.MeshID >= len(m.Mesh) {
			return nil, fmt.Errorf("instance %d: %w: mesh %d", i, ErrInvalidNodeID, inst.MeshID)
		}
		mesh := m.Mesh[inst.MeshID]
		if !inst.Xfm.IsIdentity() {
			mesh = transformMesh(mesh, inst)
		}
		node := NewTriangleMesh(uniqueName(world, mesh.Name, "mesh"), mesh, materialNode(mesh.Material))
		world.Add(node)
		l.Add(node)
	}
	return world, nil
}

// uniqueName returns name, or name with a numeric suffix, that is not yet a
// child of parent.
func uniqueName(parent *Node, name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if !parent.HasChild(name) {
		return name
	}
	for i := 1; ; i++ {
		if s := fmt.Sprintf("%s_%d", name, i); !parent.HasChild(s) {
			return s
		}
	}
}

func transformMesh(mesh *scene.Mesh, inst scene.Instance) *scene.Mesh {
	out := scene.NewMesh(mesh.Name, mesh.Material)
	out.Texcoord = mesh.Texcoord
	out.Color = mesh.Color
	out.Triangle = mesh.Triangle
	out.MaterialList = mesh.MaterialList
	out.TriangleMaterialID = mesh.TriangleMaterialID
	out.Position = make([]math.Vec3, len(mesh.Position))
	for i, p := range mesh.Position {
		out.Position[i] = inst.Xfm.TransformPoint(p)
	}
	if len(mesh.Normal) > 0 {
		out.Normal = make([]math.Vec3, len(mesh.Normal))
		for i, nrm := range mesh.Normal {
			out.Normal[i] = inst.Xfm.TransformNormal(nrm).Normalize()
		}
	}
	return out
}
