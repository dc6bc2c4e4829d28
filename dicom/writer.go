package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sobreiro-labs/dicomkit/vr"
)

// Writer serializes a Root back into Part 10 bytes: preamble, "DICM"
// prefix, File Meta Information (always Explicit VR Little Endian), then
// the main dataset under Root.Profile, deflate-wrapped when the transfer
// syntax calls for it.
type Writer struct{}

// NewWriter returns a ready-to-use Writer. Writer holds no state, so the
// zero value works too.
func NewWriter() *Writer {
	return &Writer{}
}

// Write serializes root to w. A root parsed without a Part 10 preamble
// (root.HasPreamble == false) round-trips as a bare dataset from byte 0,
// with no preamble/DICM/File Meta Information written.
func (wr *Writer) Write(w io.Writer, root *Root) error {
	if !root.HasPreamble {
		datasetBytes, err := wr.encodeDataset(root)
		if err != nil {
			return fmt.Errorf("encoding dataset: %w", err)
		}
		if root.Profile.Deflated {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			if _, err := fw.Write(datasetBytes); err != nil {
				return err
			}
			return fw.Close()
		}
		_, err = io.Copy(w, bytes.NewReader(datasetBytes))
		return err
	}

	if _, err := w.Write(root.Preamble[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte(dicmMagic)); err != nil {
		return err
	}

	fmiBytes, err := wr.encodeFileMeta(root)
	if err != nil {
		return fmt.Errorf("encoding File Meta Information: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(fmiBytes)); err != nil {
		return err
	}

	datasetBytes, err := wr.encodeDataset(root)
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}

	if root.Profile.Deflated {
		fw, _ := flate.NewWriter(w, flate.DefaultCompression)
		if _, err := fw.Write(datasetBytes); err != nil {
			return err
		}
		return fw.Close()
	}
	_, err = io.Copy(w, bytes.NewReader(datasetBytes))
	return err
}

func (wr *Writer) encodeFileMeta(root *Root) ([]byte, error) {
	var body bytes.Buffer
	for _, tag := range root.Elements.Tags() {
		if tag.Group != 0x0002 || tag == TagFileMetaGroupLength {
			continue
		}
		node, _ := root.Elements.Get(tag)
		b, err := wr.encodeNode(FileMetaProfile, node)
		if err != nil {
			return nil, err
		}
		body.Write(b)
	}

	var out bytes.Buffer
	groupLengthNode := &Node{
		Tag: TagFileMetaGroupLength,
		VR:  vr.UnsignedLong,
		Leaf: &Element{
			Tag:    TagFileMetaGroupLength,
			VR:     vr.UnsignedLong,
			Length: 4,
			Value:  uint32LE(uint32(body.Len())),
		},
	}
	glBytes, err := wr.encodeNode(FileMetaProfile, groupLengthNode)
	if err != nil {
		return nil, err
	}
	out.Write(glBytes)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func (wr *Writer) encodeDataset(root *Root) ([]byte, error) {
	var body bytes.Buffer
	for _, tag := range root.Elements.Tags() {
		if tag.Group == 0x0002 {
			continue
		}
		node, _ := root.Elements.Get(tag)
		b, err := wr.encodeNode(root.Profile, node)
		if err != nil {
			return nil, err
		}
		body.Write(b)
	}
	return body.Bytes(), nil
}

func (wr *Writer) encodeNode(profile EncodingProfile, node *Node) ([]byte, error) {
	if node.IsSequence() {
		return wr.encodeSequenceNode(profile, node)
	}
	return wr.encodeLeaf(profile, node)
}

func (wr *Writer) encodeLeaf(profile EncodingProfile, node *Node) ([]byte, error) {
	value := padEven(node.Leaf.Value, node.VR.PaddingByte())

	var buf bytes.Buffer
	writeTag(&buf, profile.ByteOrder, node.Tag)

	if profile.ExplicitVR {
		buf.WriteString(node.VR.String())
		if node.VR.UsesLongHeaderForm() {
			buf.Write([]byte{0, 0})
			writeUint32(&buf, profile.ByteOrder, uint32(len(value)))
		} else {
			if len(value) > 0xFFFF {
				return nil, fmt.Errorf("dicom: value for %s exceeds short-VR 16-bit length limit", node.Tag)
			}
			writeUint16(&buf, profile.ByteOrder, uint16(len(value)))
		}
	} else {
		writeUint32(&buf, profile.ByteOrder, uint32(len(value)))
	}
	buf.Write(value)
	return buf.Bytes(), nil
}

func (wr *Writer) encodeSequenceNode(profile EncodingProfile, node *Node) ([]byte, error) {
	// Private UN tags with UndefinedLength are parsed as sequences of items
	// (see elementparser.go), so their Items carry Children rather than raw
	// Fragment bytes, same as a genuine VR=SQ node.
	isSequence := node.VR == vr.SequenceOfItems || node.VR == vr.Unknown

	var items bytes.Buffer
	for _, item := range node.Items {
		b, err := wr.encodeItem(profile, isSequence, item)
		if err != nil {
			return nil, err
		}
		items.Write(b)
	}
	if node.UndefinedLength {
		writeControlHeader(&items, TagSequenceDelimitationItem, 0)
	}

	var buf bytes.Buffer
	writeTag(&buf, profile.ByteOrder, node.Tag)
	if profile.ExplicitVR {
		buf.WriteString(node.VR.String())
		buf.Write([]byte{0, 0})
	}
	length := uint32(items.Len())
	if node.UndefinedLength {
		length = UndefinedLength
	}
	writeUint32(&buf, profile.ByteOrder, length)
	buf.Write(items.Bytes())
	return buf.Bytes(), nil
}

func (wr *Writer) encodeItem(profile EncodingProfile, isSequenceItem bool, item *Item) ([]byte, error) {
	if !isSequenceItem {
		var buf bytes.Buffer
		writeControlHeader(&buf, TagItem, uint32(len(item.Fragment)))
		buf.Write(item.Fragment)
		return buf.Bytes(), nil
	}

	var children bytes.Buffer
	for _, tag := range item.Children.Tags() {
		n, _ := item.Children.Get(tag)
		b, err := wr.encodeNode(profile, n)
		if err != nil {
			return nil, err
		}
		children.Write(b)
	}
	if item.UndefinedLength {
		writeControlHeader(&children, TagItemDelimitationItem, 0)
	}

	length := uint32(children.Len())
	if item.UndefinedLength {
		length = UndefinedLength
	}
	var buf bytes.Buffer
	writeControlHeader(&buf, TagItem, length)
	buf.Write(children.Bytes())
	return buf.Bytes(), nil
}

func writeControlHeader(buf *bytes.Buffer, tag Tag, length uint32) {
	writeTag(buf, binary.LittleEndian, tag)
	writeUint32(buf, binary.LittleEndian, length)
}

func writeTag(buf *bytes.Buffer, order binary.ByteOrder, tag Tag) {
	var b [4]byte
	order.PutUint16(b[0:2], tag.Group)
	order.PutUint16(b[2:4], tag.Element)
	buf.Write(b[:])
}

func writeUint16(buf *bytes.Buffer, order binary.ByteOrder, v uint16) {
	var b [2]byte
	order.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, order binary.ByteOrder, v uint32) {
	var b [4]byte
	order.PutUint32(b[:], v)
	buf.Write(b[:])
}

func uint32LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func padEven(value []byte, pad byte) []byte {
	if len(value)%2 == 0 {
		return value
	}
	out := make([]byte, len(value)+1)
	copy(out, value)
	out[len(value)] = pad
	return out
}
