package dicom

import (
	"bytes"
	"sort"
	"strings"

	"github.com/sobreiro-labs/dicomkit/charset"
	"github.com/sobreiro-labs/dicomkit/metrics"
	"github.com/sobreiro-labs/dicomkit/types"
	"github.com/sobreiro-labs/dicomkit/vr"
)

// VR (Value Representation) string constants, kept for callers that build
// elements against a plain string VR rather than the vr package's closed
// enum. These mirror vr.VR.String() for every code in the dictionary.
const (
	VR_AE = "AE"
	VR_AS = "AS"
	VR_AT = "AT"
	VR_CS = "CS"
	VR_DA = "DA"
	VR_DS = "DS"
	VR_DT = "DT"
	VR_FL = "FL"
	VR_FD = "FD"
	VR_IS = "IS"
	VR_LO = "LO"
	VR_LT = "LT"
	VR_OB = "OB"
	VR_OD = "OD"
	VR_OF = "OF"
	VR_OL = "OL"
	VR_OW = "OW"
	VR_PN = "PN"
	VR_SH = "SH"
	VR_SL = "SL"
	VR_SQ = "SQ"
	VR_SS = "SS"
	VR_ST = "ST"
	VR_TM = "TM"
	VR_UC = "UC"
	VR_UI = "UI"
	VR_UL = "UL"
	VR_UN = "UN"
	VR_UR = "UR"
	VR_US = "US"
	VR_UT = "UT"
)

// Common transfer syntax UIDs, re-exported from types for callers that
// historically reached them through the dicom package.
const (
	TransferSyntaxImplicitVRLittleEndian = types.ImplicitVRLittleEndian
	TransferSyntaxExplicitVRLittleEndian = types.ExplicitVRLittleEndian
)

// Dataset is a flat, order-preserving view over a dataset's top-level
// elements. It is a convenience facade for DIMSE command/identifier
// datasets, which are rarely nested: internally it holds a Root built and
// walked by the same Parser/Writer the Part 10 file path uses, so its wire
// format stays identical to what StripPart10Header/ParseFile produce.
type Dataset struct {
	root *Root
}

// NewDataset creates a new empty dataset under Explicit VR Little Endian,
// the default encoding for DIMSE identifier datasets.
func NewDataset() *Dataset {
	root := NewRoot()
	root.TransferSyntaxUID = TransferSyntaxExplicitVRLittleEndian
	root.Profile = ProfileForTransferSyntax(root.TransferSyntaxUID)
	return &Dataset{root: root}
}

// AddElement adds or replaces a string-valued element in the dataset.
func (d *Dataset) AddElement(tag Tag, vrCode string, value string) {
	v := vr.ParseOrInvalid(vrCode)
	raw := []byte(value)
	if len(raw)%2 == 1 {
		raw = append(raw, v.PaddingByte())
	}
	d.root.Elements.Put(&Node{
		Tag: tag,
		VR:  v,
		Leaf: &Element{
			Tag:    tag,
			VR:     v,
			Length: uint32(len(raw)),
			Value:  raw,
		},
	})
}

// GetElement returns the node for tag, if present.
func (d *Dataset) GetElement(tag Tag) (*Node, bool) {
	return d.root.Get(tag)
}

// GetString returns the trimmed string value of a leaf element, or "" if
// the tag is absent or is a sequence. PN/LO/LT/SH/ST/UT/UC values are
// decoded through the dataset's active SpecificCharacterSet; every other
// VR uses the default character repertoire, which is a byte-identical
// pass-through.
func (d *Dataset) GetString(tag Tag) string {
	node, ok := d.root.Get(tag)
	if !ok || node.Leaf == nil {
		return ""
	}
	if node.VR.IsEncodedUsingCharacterSet() {
		cs := d.root.CharacterSet
		if cs == nil {
			cs = charset.Default
		}
		if s, err := cs.Decode(node.Leaf.Value); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(string(bytes.TrimRight(node.Leaf.Value, "\x00")))
}

// GetStrings splits a multi-valued (backslash-separated) element into its
// component strings.
func (d *Dataset) GetStrings(tag Tag) []string {
	s := d.GetString(tag)
	if s == "" {
		return nil
	}
	return splitMultiValue(s)
}

// Root exposes the dataset's underlying tree, for callers that need access
// to sequences or nested items beyond the flat string accessors above.
func (d *Dataset) Root() *Root {
	return d.root
}

// ParseDataset parses a bare (no Part 10 preamble/File Meta) dataset under
// Explicit VR Little Endian, the default for DIMSE identifier datasets
// sent over an established association.
func ParseDataset(data []byte) (*Dataset, error) {
	return ParseDatasetWithTransferSyntax(data, TransferSyntaxExplicitVRLittleEndian)
}

// ParseDatasetWithTransferSyntax parses a bare dataset under the given
// transfer syntax, falling back to Explicit VR Little Endian when uid is
// empty. DIMSE command sets are always Implicit VR Little Endian; the dimse
// codec passes that UID explicitly.
func ParseDatasetWithTransferSyntax(data []byte, uid string) (*Dataset, error) {
	if uid == "" {
		uid = TransferSyntaxExplicitVRLittleEndian
	}
	root := NewRoot()
	root.TransferSyntaxUID = uid
	root.Profile = ProfileForTransferSyntax(uid)

	if len(data) == 0 {
		return &Dataset{root: root}, nil
	}

	parser := NewParser(ParserOptions{AllowPartialObject: true})
	br := newByteReader(bytes.NewReader(data))
	err := parser.readDataset(br, root)
	metrics.BytesParsed.Add(float64(br.Offset()))
	if err != nil {
		return &Dataset{root: root}, err
	}
	return &Dataset{root: root}, nil
}

// EncodeDataset serializes the dataset's elements under its own transfer
// syntax (Explicit VR Little Endian, for datasets built via NewDataset).
func (d *Dataset) EncodeDataset() []byte {
	b, _ := EncodeDatasetWithTransferSyntax(d, d.root.TransferSyntaxUID)
	return b
}

// EncodeDatasetWithTransferSyntax serializes dataset's elements as a bare
// stream (no preamble, no File Meta Information) under uid.
func EncodeDatasetWithTransferSyntax(dataset *Dataset, uid string) ([]byte, error) {
	if dataset == nil {
		return nil, nil
	}
	if uid == "" {
		uid = TransferSyntaxExplicitVRLittleEndian
	}
	profile := ProfileForTransferSyntax(uid)

	tags := append([]Tag(nil), dataset.root.Elements.Tags()...)
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Group != tags[j].Group {
			return tags[i].Group < tags[j].Group
		}
		return tags[i].Element < tags[j].Element
	})

	wr := NewWriter()
	var buf bytes.Buffer
	for _, tag := range tags {
		node, _ := dataset.root.Elements.Get(tag)
		b, err := wr.encodeNode(profile, node)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}
