package dicom

import (
	"github.com/sobreiro-labs/dicomkit/charset"
	"github.com/sobreiro-labs/dicomkit/vr"
)

// Element is a leaf data element: a tag, its VR, and its raw value bytes
// exactly as they appear on the wire (no charset decoding, no numeric
// unmarshaling — callers interpret Value according to VR).
type Element struct {
	Tag            Tag
	VR             vr.VR
	Length         uint32 // declared value length
	Value          []byte
	TransferSyntax string // transfer syntax UID in effect when this element was parsed
}

// UndefinedLen reports whether Length holds the UndefinedLength sentinel.
// The parser never produces such a leaf: SQ elements, encapsulated pixel
// data and undefined-length private UN elements are represented by
// Node.Items instead of a raw Element.
func (e *Element) UndefinedLen() bool {
	return e.Length == UndefinedLength
}

// Item is one member of a sequence (SQ), or one fragment of encapsulated
// pixel data. Index is the item's 1-based position within its parent
// sequence, per the object tree model's addressing convention.
type Item struct {
	Index           int
	UndefinedLength bool
	// Children holds the item's parsed sub-elements, for a normal sequence
	// item. Nil for a pixel-data fragment.
	Children *NodeMap
	// Fragment holds the raw bytes of a pixel-data fragment item. Nil for
	// a normal sequence item.
	Fragment []byte
	// HasItemDelimiter records whether an undefined-length item was closed
	// by a trailing ItemDelimitationItem (always true when UndefinedLength
	// is true and parsing completed without error).
	HasItemDelimiter bool
}

// Node is one entry in the object tree: either a leaf Element, or a
// sequence/encapsulated-pixel-data container holding an ordered list of
// Items.
type Node struct {
	Tag    Tag
	VR     vr.VR
	Leaf   *Element // non-nil for ordinary elements
	Items  []*Item  // non-nil (possibly empty) for SQ and encapsulated pixel data
	// UndefinedLength and HasSequenceDelimiter describe a sequence/
	// encapsulated-pixel-data container's own length framing; they are
	// meaningless when Leaf is set.
	UndefinedLength      bool
	HasSequenceDelimiter bool
}

// IsSequence reports whether this node is a container (SQ or encapsulated
// pixel data) rather than a leaf value.
func (n *Node) IsSequence() bool {
	return n.Items != nil
}

// NodeMap is an insertion-ordered Tag -> *Node map, used both for a
// dataset's top-level elements and for each sequence Item's children.
type NodeMap struct {
	order []Tag
	nodes map[Tag]*Node
}

// NewNodeMap returns an empty, ready-to-use NodeMap.
func NewNodeMap() *NodeMap {
	return &NodeMap{nodes: make(map[Tag]*Node)}
}

// Put inserts or replaces the node for its tag, preserving first-insertion
// order for new tags.
func (m *NodeMap) Put(n *Node) {
	if _, exists := m.nodes[n.Tag]; !exists {
		m.order = append(m.order, n.Tag)
	}
	m.nodes[n.Tag] = n
}

// Get returns the node for tag, if present.
func (m *NodeMap) Get(tag Tag) (*Node, bool) {
	n, ok := m.nodes[tag]
	return n, ok
}

// Tags returns the tags in insertion order.
func (m *NodeMap) Tags() []Tag {
	return m.order
}

// Nodes returns the nodes in insertion order.
func (m *NodeMap) Nodes() []*Node {
	out := make([]*Node, 0, len(m.order))
	for _, t := range m.order {
		out = append(out, m.nodes[t])
	}
	return out
}

// Len returns the number of top-level entries.
func (m *NodeMap) Len() int {
	return len(m.order)
}

// Root is the top-level parsed object: the Part 10 preamble (if present),
// the detected transfer syntax, the active SpecificCharacterSet, and the
// dataset's elements.
type Root struct {
	HasPreamble bool
	Preamble    [128]byte
	HasDICM     bool

	TransferSyntaxUID    string
	Profile              EncodingProfile
	SpecificCharacterSet []string
	CharacterSet         *charset.Cascade

	Elements *NodeMap
}

// NewRoot returns an empty Root ready to accumulate parsed elements.
func NewRoot() *Root {
	return &Root{Elements: NewNodeMap(), CharacterSet: charset.Default}
}

// Get is a convenience accessor for a top-level element's node.
func (r *Root) Get(tag Tag) (*Node, bool) {
	return r.Elements.Get(tag)
}
