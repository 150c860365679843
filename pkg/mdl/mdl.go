// Package mdl defines the in-memory representation of an MDLB model asset:
// a flat node forest with integer hierarchy links, skinned/rigid meshes,
// attachment dummies, two named skeletons and the shared material tables.
package mdl

import "github.com/go-gl/mathgl/mgl32"

// NodeFlags describes the semantic roles a node plays, derived from the
// references other entities hold to it.
type NodeFlags uint8

const (
	// NodeDisabled marks a node with no references and no hierarchy links.
	// Disabled is exclusive: a disabled node carries no other role flag.
	NodeDisabled NodeFlags = 1 << iota
	// NodeBone marks a node referenced by vertex skinning data.
	NodeBone
	// NodeMeshAnchor marks a node a rigid mesh is anchored to.
	NodeMeshAnchor
	// NodeDummyOwner marks a node a dummy point attaches to or follows.
	NodeDummyOwner
)

// Has reports whether all bits of f are set in flags.
func (flags NodeFlags) Has(f NodeFlags) bool {
	return flags&f == f
}

// Set adds the given role bits, maintaining the Disabled exclusivity rule:
// setting Disabled clears every other bit, and setting any role bit clears
// Disabled.
func (flags *NodeFlags) Set(f NodeFlags) {
	if f.Has(NodeDisabled) {
		*flags = NodeDisabled
		return
	}
	*flags = (*flags &^ NodeDisabled) | f
}

// Node is one entry in the model's flat node forest. Hierarchy is expressed
// through indices into Model.Nodes; -1 means no link.
type Node struct {
	Name  string
	Flags NodeFlags

	Parent      int16
	FirstChild  int16
	PrevSibling int16
	NextSibling int16

	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
}

// MaxSkinnedBones is the number of bone influence slots per vertex.
const MaxSkinnedBones = 4

// MaxNodes bounds the node sequence so every index fits an int16 link field.
const MaxNodes = 0x7fff

// Vertex holds one mesh vertex. BoneIndices/BoneWeights are used when the
// owning mesh is dynamic (skinned); NormalW holds the single anchor bone
// index used otherwise.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3

	BoneIndices [MaxSkinnedBones]int16
	BoneWeights [MaxSkinnedBones]float32
	NormalW     int16

	UVs []mgl32.Vec2
}

// FaceSetFlags tags a faceset with its level-of-detail slot and motion blur
// usage.
type FaceSetFlags uint32

const (
	FaceSetLOD1       FaceSetFlags = 1 << 0
	FaceSetLOD2       FaceSetFlags = 1 << 1
	FaceSetMotionBlur FaceSetFlags = 1 << 2
)

// CanonicalFaceSetFlags is the ordered list of the six faceset slots every
// complete mesh carries.
var CanonicalFaceSetFlags = [6]FaceSetFlags{
	0,
	FaceSetLOD1,
	FaceSetLOD2,
	FaceSetMotionBlur,
	FaceSetMotionBlur | FaceSetLOD1,
	FaceSetMotionBlur | FaceSetLOD2,
}

// FaceSet is one indexed triangle list variant of a mesh. Indices are a flat
// triangle list (three per face) unless TriangleStrip is set.
type FaceSet struct {
	Flags         FaceSetFlags
	TriangleStrip bool
	CullBackfaces bool
	Indices       []uint16
}

// TriangleCount returns the number of whole triangles in a list-mode faceset.
func (fs *FaceSet) TriangleCount() int {
	if fs.TriangleStrip {
		return 0
	}
	return len(fs.Indices) / 3
}

// Mesh is one draw batch: a vertex buffer plus its faceset variants.
// NodeIndex is the anchor bone for rigid meshes, -1 if unused.
type Mesh struct {
	Dynamic       bool
	MaterialIndex int32
	NodeIndex     int32
	Vertices      []Vertex
	FaceSets      []FaceSet
}

// Dummy is a named attachment point bound to one or two nodes.
type Dummy struct {
	ReferenceID     int16
	Position        mgl32.Vec3
	AttachBoneIndex int16
	ParentBoneIndex int16
}

// Bone is one skeleton entry. NodeIndex points into Model.Nodes; the four
// link fields are positions within the owning skeleton's bone sequence.
type Bone struct {
	NodeIndex   int32
	Parent      int16
	FirstChild  int16
	PrevSibling int16
	NextSibling int16
}

// Skeleton is an alternate, possibly partial, indexing of the node forest
// used for animation binding.
type Skeleton struct {
	Bones []Bone
}

// Material names a surface and points at its shared render state.
// GXIndex is -1 when the material carries no GX list.
type Material struct {
	Name    string
	GXIndex int32
}

// GXList is an opaque shared rendering-state blob.
type GXList []byte

// Model is a fully decoded MDLB asset. All cross-references between the
// collections are integer indices; -1 is the universal "none" sentinel.
type Model struct {
	Nodes     []Node
	Meshes    []Mesh
	Dummies   []Dummy
	Materials []Material
	GXLists   []GXList

	BaseSkeleton Skeleton
	AllSkeleton  Skeleton
}

// ValidNode reports whether i indexes an existing node.
func (m *Model) ValidNode(i int) bool {
	return i >= 0 && i < len(m.Nodes)
}
