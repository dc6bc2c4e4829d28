package dicom

import (
	"encoding/binary"
	"io"

	derrors "github.com/sobreiro-labs/dicomkit/errors"
	"github.com/sobreiro-labs/dicomkit/dictionary"
	"github.com/sobreiro-labs/dicomkit/vr"
)

// control describes an Item, ItemDelimitationItem or SequenceDelimitationItem
// header, which elementParser always decodes as Implicit VR Little Endian
// with a 4-byte length, regardless of the enclosing EncodingProfile.
type control struct {
	Tag    Tag
	Length uint32
}

// elementParser performs the recursive-descent read of one dataset: tag,
// VR, length and value, descending into sequences and encapsulated pixel
// data fragments as needed.
type elementParser struct {
	r            *byteReader
	allowPartial bool
}

func newElementParser(r *byteReader, allowPartial bool) *elementParser {
	return &elementParser{r: r, allowPartial: allowPartial}
}

func decodeLE(b [4]byte) Tag {
	return Tag{
		Group:   binary.LittleEndian.Uint16(b[0:2]),
		Element: binary.LittleEndian.Uint16(b[2:4]),
	}
}

func decodeWithOrder(b [4]byte, order binary.ByteOrder) Tag {
	return Tag{
		Group:   order.Uint16(b[0:2]),
		Element: order.Uint16(b[2:4]),
	}
}

func (p *elementParser) readRawTagBytes() ([4]byte, error) {
	var out [4]byte
	buf, err := p.r.readFull(4)
	if err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

// readNext reads one header at the current position. It returns either a
// fully-parsed Node (normal element), or a non-nil control describing a
// structural Item/delimiter header for the caller to interpret.
func (p *elementParser) readNext(profile EncodingProfile) (*Node, *control, error) {
	tagBytes, err := p.readRawTagBytes()
	if err != nil {
		return nil, nil, err
	}
	leTag := decodeLE(tagBytes)
	if leTag.isStructural() {
		length, err := p.r.readUint32(binary.LittleEndian)
		if err != nil {
			return nil, nil, err
		}
		return nil, &control{Tag: leTag, Length: length}, nil
	}
	tag := decodeWithOrder(tagBytes, profile.ByteOrder)
	node, err := p.readElementBody(profile, tag)
	return node, nil, err
}

func (p *elementParser) readElementBody(profile EncodingProfile, tag Tag) (*Node, error) {
	var vrCode vr.VR
	var length uint32

	if profile.ExplicitVR {
		vrBytes, err := p.r.readFull(2)
		if err != nil {
			return nil, err
		}
		vrCode = vr.ParseOrInvalid(string(vrBytes))
		long := vrCode.UsesLongHeaderForm() || vrCode == vr.Invalid
		if vrCode == vr.Invalid {
			if !p.allowPartial {
				return nil, derrors.Detail(derrors.ErrUnknownExplicitVR, tag.String(), p.r.Offset())
			}
			vrCode = vr.Unknown // fall back to UN, per the tolerant-parse path
		}
		if long {
			if _, err := p.r.readFull(2); err != nil { // reserved
				return nil, err
			}
			if length, err = p.r.readUint32(profile.ByteOrder); err != nil {
				return nil, err
			}
		} else {
			l16, err := p.r.readUint16(profile.ByteOrder)
			if err != nil {
				return nil, err
			}
			length = uint32(l16)
		}
	} else {
		if entry, ok := dictionary.Default.LookupTag(tag.Group, tag.Element); ok {
			vrCode = entry.VR
		} else {
			vrCode = vr.Unknown
		}
		var err error
		if length, err = p.r.readUint32(profile.ByteOrder); err != nil {
			return nil, err
		}
	}

	if vrCode == vr.SequenceOfItems {
		return p.readSequenceNode(profile, tag, vrCode, length)
	}

	if length == UndefinedLength {
		if vrCode == vr.Unknown && tag.IsPrivate() {
			// Private UN tags with UndefinedLength carry nested elements, not
			// encapsulated pixel-data fragments: parse as a sequence.
			return p.readSequenceNode(profile, tag, vrCode, length)
		}
		if vrCode.AllowsUndefinedLength() {
			return p.readEncapsulatedNode(profile, tag, vrCode)
		}
		if p.allowPartial {
			return &Node{Tag: tag, VR: vrCode, Leaf: &Element{Tag: tag, VR: vrCode}}, nil
		}
		return nil, derrors.Detail(derrors.ErrUnexpectedDelimiter, tag.String(), p.r.Offset())
	}

	value, err := p.r.readFull(int(length))
	if err != nil {
		if p.allowPartial {
			return &Node{Tag: tag, VR: vrCode, Leaf: &Element{Tag: tag, VR: vrCode, Length: uint32(len(value)), Value: value}}, nil
		}
		return nil, err
	}
	return &Node{Tag: tag, VR: vrCode, Leaf: &Element{Tag: tag, VR: vrCode, Length: length, Value: value, TransferSyntax: ""}}, nil
}

func (p *elementParser) readSequenceNode(profile EncodingProfile, tag Tag, vrCode vr.VR, length uint32) (*Node, error) {
	undefined := length == UndefinedLength
	var endOffset int64
	if !undefined {
		endOffset = p.r.Offset() + int64(length)
	}
	items, hasDelim, err := p.readItems(profile, endOffset, undefined, false)
	if err != nil && !p.allowPartial {
		return nil, err
	}
	return &Node{Tag: tag, VR: vrCode, Items: items, UndefinedLength: undefined, HasSequenceDelimiter: hasDelim}, nil
}

func (p *elementParser) readEncapsulatedNode(profile EncodingProfile, tag Tag, vrCode vr.VR) (*Node, error) {
	items, hasDelim, err := p.readItems(profile, 0, true, true)
	if err != nil && !p.allowPartial {
		return nil, err
	}
	return &Node{Tag: tag, VR: vrCode, Items: items, UndefinedLength: true, HasSequenceDelimiter: hasDelim}, nil
}

// readItems reads a run of Item headers terminated either by reaching
// endOffset (definite-length container) or by a SequenceDelimitationItem
// (undefinedLength container). isPixelFragments selects raw-fragment items
// (encapsulated pixel data) over normal sequence items with parsed children.
func (p *elementParser) readItems(profile EncodingProfile, endOffset int64, undefinedLength, isPixelFragments bool) ([]*Item, bool, error) {
	items := []*Item{}
	for {
		if !undefinedLength && p.r.Offset() >= endOffset {
			return items, false, nil
		}
		node, ctrl, err := p.readNext(profile)
		if err != nil {
			if err == io.EOF && !undefinedLength {
				return items, false, nil
			}
			if err == io.EOF {
				return items, false, derrors.Detail(derrors.ErrMissingDelimiter, TagSequenceDelimitationItem.String(), p.r.Offset())
			}
			return items, false, err
		}
		if node != nil {
			return items, false, derrors.Detail(derrors.ErrProtocolViolation, node.Tag.String(), p.r.Offset())
		}
		switch ctrl.Tag {
		case TagSequenceDelimitationItem:
			return items, true, nil
		case TagItem:
			item, err := p.readOneItem(profile, ctrl.Length, isPixelFragments, len(items)+1)
			if item != nil {
				items = append(items, item)
			}
			if err != nil {
				return items, false, err
			}
		default:
			return items, false, derrors.Detail(derrors.ErrUnexpectedDelimiter, ctrl.Tag.String(), p.r.Offset())
		}
	}
}

func (p *elementParser) readOneItem(profile EncodingProfile, length uint32, isPixelFragments bool, index int) (*Item, error) {
	undefined := length == UndefinedLength
	if isPixelFragments {
		if undefined {
			return nil, derrors.Detail(derrors.ErrUnexpectedDelimiter, TagItem.String(), p.r.Offset())
		}
		data, err := p.r.readFull(int(length))
		return &Item{Index: index, Fragment: data}, err
	}
	var endOffset int64
	if !undefined {
		endOffset = p.r.Offset() + int64(length)
	}
	children, hasDelim, err := p.readItemChildren(profile, endOffset, undefined)
	return &Item{Index: index, UndefinedLength: undefined, Children: children, HasItemDelimiter: hasDelim}, err
}

func (p *elementParser) readItemChildren(profile EncodingProfile, endOffset int64, undefinedLength bool) (*NodeMap, bool, error) {
	nm := NewNodeMap()
	for {
		if !undefinedLength && p.r.Offset() >= endOffset {
			return nm, false, nil
		}
		node, ctrl, err := p.readNext(profile)
		if err != nil {
			if err == io.EOF && !undefinedLength {
				return nm, false, nil
			}
			if err == io.EOF {
				return nm, false, derrors.Detail(derrors.ErrMissingDelimiter, TagItemDelimitationItem.String(), p.r.Offset())
			}
			return nm, false, err
		}
		if ctrl != nil {
			if ctrl.Tag == TagItemDelimitationItem {
				return nm, true, nil
			}
			return nm, false, derrors.Detail(derrors.ErrUnexpectedDelimiter, ctrl.Tag.String(), p.r.Offset())
		}
		nm.Put(node)
	}
}
