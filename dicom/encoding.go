package dicom

import (
	"encoding/binary"

	"github.com/sobreiro-labs/dicomkit/dictionary"
)

// UndefinedLength is the sentinel value-length used by SQ, and by OB/OW/UN
// when carrying encapsulated pixel data fragments delimited by a terminal
// SequenceDelimitationItem.
const UndefinedLength uint32 = 0xFFFFFFFF

// EncodingProfile captures everything the element parser/writer needs to
// know about how a dataset's bytes are laid out: byte order, whether the VR
// is written explicitly, and whether the stream is deflate-compressed.
//
// File Meta Information always uses ExplicitVRLittleEndian regardless of
// the main dataset's profile. Item, ItemDelimitationItem and
// SequenceDelimitationItem headers are always read/written Implicit VR
// Little Endian regardless of the enclosing profile — callers never need to
// construct an EncodingProfile for those, the parser/writer special-case
// them directly.
type EncodingProfile struct {
	ByteOrder  binary.ByteOrder
	ExplicitVR bool
	Deflated   bool
}

// BigEndian reports whether this profile's byte order is big endian.
func (p EncodingProfile) BigEndian() bool {
	return p.ByteOrder == binary.BigEndian
}

// FileMetaProfile is the fixed encoding of File Meta Information.
var FileMetaProfile = EncodingProfile{ByteOrder: binary.LittleEndian, ExplicitVR: true}

// implicitLittleEndianProfile describes the Implicit VR Little Endian layout
// of Item/Delimitation headers. elementParser and Writer decode and encode
// those headers directly with binary.LittleEndian, not through this value.
var implicitLittleEndianProfile = EncodingProfile{ByteOrder: binary.LittleEndian, ExplicitVR: false}

// ProfileForTransferSyntax derives the encoding profile for a dataset from
// its negotiated/declared Transfer Syntax UID.
func ProfileForTransferSyntax(uid string) EncodingProfile {
	info := dictionary.Default.LookupTS(uid)
	byteOrder := binary.ByteOrder(binary.LittleEndian)
	if info.BigEndian {
		byteOrder = binary.BigEndian
	}
	return EncodingProfile{
		ByteOrder:  byteOrder,
		ExplicitVR: info.ExplicitVR,
		Deflated:   info.Deflated,
	}
}
