// MDLB container codec. The layout is a little-endian sectioned stream:
// header with collection counts, then nodes, meshes (vertex buffer followed
// by facesets), dummies, materials, GX lists and the two skeletons.
package mdl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
)

// MDLB codec errors.
var (
	ErrInvalidMagic       = errors.New("invalid MDLB magic: expected 'MDLB'")
	ErrUnsupportedVersion = errors.New("unsupported MDLB version")
	ErrTruncatedData      = errors.New("truncated MDLB data")
	ErrInvalidCount       = errors.New("invalid MDLB collection count")
	ErrStringTooLong      = errors.New("MDLB string exceeds maximum length")
)

const (
	mdlbMagic   = "MDLB"
	mdlbVersion = uint32(0x10)

	maxMeshes    = 4096
	maxVertices  = 0x10000
	maxFaceSets  = 256
	maxIndices   = 1 << 20
	maxUVs       = 8
	maxDummies   = 4096
	maxMaterials = 4096
	maxGXLists   = 4096
	maxGXListLen = 1 << 16
	maxStringLen = 1024
)

// Sniff reports whether data looks like an MDLB model.
func Sniff(data []byte) bool {
	return len(data) >= 8 && string(data[:4]) == mdlbMagic
}

// Decode parses a complete MDLB asset from data.
func Decode(data []byte) (*Model, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, ErrTruncatedData
	}
	if string(magic) != mdlbMagic {
		return nil, ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrTruncatedData
	}
	if version != mdlbVersion {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, version)
	}

	var counts struct {
		Nodes     uint32
		Meshes    uint32
		Dummies   uint32
		Materials uint32
		GXLists   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return nil, ErrTruncatedData
	}
	if counts.Nodes > MaxNodes || counts.Meshes > maxMeshes ||
		counts.Dummies > maxDummies || counts.Materials > maxMaterials ||
		counts.GXLists > maxGXLists {
		return nil, ErrInvalidCount
	}

	m := &Model{}

	m.Nodes = make([]Node, counts.Nodes)
	for i := range m.Nodes {
		if err := decodeNode(r, &m.Nodes[i]); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}

	m.Meshes = make([]Mesh, counts.Meshes)
	for i := range m.Meshes {
		if err := decodeMesh(r, &m.Meshes[i]); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
	}

	m.Dummies = make([]Dummy, counts.Dummies)
	for i := range m.Dummies {
		d := &m.Dummies[i]
		if err := readLE(r, &d.ReferenceID, &d.Position, &d.AttachBoneIndex, &d.ParentBoneIndex); err != nil {
			return nil, fmt.Errorf("dummy %d: %w", i, err)
		}
	}

	m.Materials = make([]Material, counts.Materials)
	for i := range m.Materials {
		name, err := decodeString(r)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		m.Materials[i].Name = name
		if err := binary.Read(r, binary.LittleEndian, &m.Materials[i].GXIndex); err != nil {
			return nil, ErrTruncatedData
		}
	}

	m.GXLists = make([]GXList, counts.GXLists)
	for i := range m.GXLists {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, ErrTruncatedData
		}
		if size > maxGXListLen {
			return nil, ErrInvalidCount
		}
		m.GXLists[i] = make(GXList, size)
		if size > 0 {
			if _, err := io.ReadFull(r, m.GXLists[i]); err != nil {
				return nil, ErrTruncatedData
			}
		}
	}

	if err := decodeSkeleton(r, &m.BaseSkeleton); err != nil {
		return nil, fmt.Errorf("base skeleton: %w", err)
	}
	if err := decodeSkeleton(r, &m.AllSkeleton); err != nil {
		return nil, fmt.Errorf("all skeleton: %w", err)
	}

	return m, nil
}

// Encode serializes m back into its MDLB binary form.
func Encode(m *Model) ([]byte, error) {
	if len(m.Nodes) > MaxNodes || len(m.Meshes) > maxMeshes {
		return nil, ErrInvalidCount
	}

	var buf bytes.Buffer
	buf.WriteString(mdlbMagic)
	writeLE(&buf, mdlbVersion)
	writeLE(&buf,
		uint32(len(m.Nodes)), uint32(len(m.Meshes)), uint32(len(m.Dummies)),
		uint32(len(m.Materials)), uint32(len(m.GXLists)))

	for i := range m.Nodes {
		if err := encodeNode(&buf, &m.Nodes[i]); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}
	for i := range m.Meshes {
		if err := encodeMesh(&buf, &m.Meshes[i]); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
	}
	for i := range m.Dummies {
		d := &m.Dummies[i]
		writeLE(&buf, d.ReferenceID, d.Position, d.AttachBoneIndex, d.ParentBoneIndex)
	}
	for i := range m.Materials {
		if err := encodeString(&buf, m.Materials[i].Name); err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		writeLE(&buf, m.Materials[i].GXIndex)
	}
	for _, gx := range m.GXLists {
		writeLE(&buf, uint32(len(gx)))
		buf.Write(gx)
	}

	encodeSkeleton(&buf, &m.BaseSkeleton)
	encodeSkeleton(&buf, &m.AllSkeleton)

	return buf.Bytes(), nil
}

func decodeNode(r *bytes.Reader, n *Node) error {
	name, err := decodeString(r)
	if err != nil {
		return err
	}
	n.Name = name

	var flags uint8
	if err := readLE(r, &flags,
		&n.Parent, &n.FirstChild, &n.PrevSibling, &n.NextSibling,
		&n.Translation, &n.Rotation, &n.Scale); err != nil {
		return err
	}
	n.Flags = NodeFlags(flags)
	return nil
}

func encodeNode(buf *bytes.Buffer, n *Node) error {
	if err := encodeString(buf, n.Name); err != nil {
		return err
	}
	writeLE(buf, uint8(n.Flags),
		n.Parent, n.FirstChild, n.PrevSibling, n.NextSibling,
		n.Translation, n.Rotation, n.Scale)
	return nil
}

func decodeMesh(r *bytes.Reader, mesh *Mesh) error {
	var dynamic, uvChannels uint8
	var vertexCount, faceSetCount uint32
	if err := readLE(r, &dynamic, &mesh.MaterialIndex, &mesh.NodeIndex,
		&vertexCount, &faceSetCount, &uvChannels); err != nil {
		return err
	}
	mesh.Dynamic = dynamic != 0
	if vertexCount > maxVertices || faceSetCount > maxFaceSets || uvChannels > maxUVs {
		return ErrInvalidCount
	}

	mesh.Vertices = make([]Vertex, vertexCount)
	for i := range mesh.Vertices {
		v := &mesh.Vertices[i]
		if err := readLE(r, &v.Position, &v.Normal, &v.BoneIndices, &v.BoneWeights, &v.NormalW); err != nil {
			return err
		}
		v.UVs = make([]mgl32.Vec2, uvChannels)
		if err := binary.Read(r, binary.LittleEndian, v.UVs); err != nil {
			return ErrTruncatedData
		}
	}

	mesh.FaceSets = make([]FaceSet, faceSetCount)
	for i := range mesh.FaceSets {
		fs := &mesh.FaceSets[i]
		var flags uint32
		var strip, cull uint8
		var indexCount uint32
		if err := readLE(r, &flags, &strip, &cull, &indexCount); err != nil {
			return err
		}
		if indexCount > maxIndices {
			return ErrInvalidCount
		}
		fs.Flags = FaceSetFlags(flags)
		fs.TriangleStrip = strip != 0
		fs.CullBackfaces = cull != 0
		fs.Indices = make([]uint16, indexCount)
		if err := binary.Read(r, binary.LittleEndian, fs.Indices); err != nil {
			return ErrTruncatedData
		}
	}
	return nil
}

func encodeMesh(buf *bytes.Buffer, mesh *Mesh) error {
	if len(mesh.Vertices) > maxVertices {
		return ErrInvalidCount
	}

	// UV channel count is mesh-uniform; taken from the first vertex.
	var uvChannels uint8
	if len(mesh.Vertices) > 0 {
		uvChannels = uint8(len(mesh.Vertices[0].UVs))
	}

	writeLE(buf, boolByte(mesh.Dynamic), mesh.MaterialIndex, mesh.NodeIndex,
		uint32(len(mesh.Vertices)), uint32(len(mesh.FaceSets)), uvChannels)

	for i := range mesh.Vertices {
		v := &mesh.Vertices[i]
		writeLE(buf, v.Position, v.Normal, v.BoneIndices, v.BoneWeights, v.NormalW)
		uvs := v.UVs
		if len(uvs) != int(uvChannels) {
			return fmt.Errorf("%w: vertex %d has %d UV channels, mesh has %d",
				ErrInvalidCount, i, len(uvs), uvChannels)
		}
		writeLE(buf, uvs)
	}

	for i := range mesh.FaceSets {
		fs := &mesh.FaceSets[i]
		if len(fs.Indices) > maxIndices {
			return ErrInvalidCount
		}
		writeLE(buf, uint32(fs.Flags), boolByte(fs.TriangleStrip), boolByte(fs.CullBackfaces),
			uint32(len(fs.Indices)), fs.Indices)
	}
	return nil
}

func decodeSkeleton(r *bytes.Reader, s *Skeleton) error {
	var boneCount uint32
	if err := binary.Read(r, binary.LittleEndian, &boneCount); err != nil {
		return ErrTruncatedData
	}
	if boneCount > MaxNodes {
		return ErrInvalidCount
	}
	s.Bones = make([]Bone, boneCount)
	for i := range s.Bones {
		if err := binary.Read(r, binary.LittleEndian, &s.Bones[i]); err != nil {
			return ErrTruncatedData
		}
	}
	return nil
}

func encodeSkeleton(buf *bytes.Buffer, s *Skeleton) {
	writeLE(buf, uint32(len(s.Bones)))
	for i := range s.Bones {
		writeLE(buf, s.Bones[i])
	}
}

// decodeString reads a uint16-length-prefixed UTF-8 string.
func decodeString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", ErrTruncatedData
	}
	if length > maxStringLen {
		return "", ErrStringTooLong
	}
	raw := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, raw); err != nil {
			return "", ErrTruncatedData
		}
	}
	return string(raw), nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return ErrStringTooLong
	}
	writeLE(buf, uint16(len(s)))
	buf.WriteString(s)
	return nil
}

// readLE reads the given fields in order, little-endian.
func readLE(r *bytes.Reader, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return ErrTruncatedData
		}
	}
	return nil
}

// writeLE writes the given fields in order, little-endian. Writes to a
// bytes.Buffer cannot fail.
func writeLE(buf *bytes.Buffer, fields ...any) {
	for _, f := range fields {
		binary.Write(buf, binary.LittleEndian, f)
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
