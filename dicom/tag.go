package dicom

import "fmt"

// Tag identifies a DICOM data element by its group and element numbers.
type Tag struct {
	Group   uint16
	Element uint16
}

// String renders the tag as "(gggg,eeee)" in lowercase hex, the
// conventional DICOM notation.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// IsPrivate reports whether the tag's group number is odd, marking it as a
// private (vendor-specific) tag outside the public dictionary.
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsGroupLength reports whether this is a (group,0000) group length tag.
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

var (
	TagItem                     = Tag{0xFFFE, 0xE000}
	TagItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	TagSequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
	TagSpecificCharacterSet     = Tag{0x0008, 0x0005}
	TagTransferSyntaxUID        = Tag{0x0002, 0x0010}
	TagFileMetaGroupLength      = Tag{0x0002, 0x0000}
)

func (t Tag) isStructural() bool {
	return t == TagItem || t == TagItemDelimitationItem || t == TagSequenceDelimitationItem
}
