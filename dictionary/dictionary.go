// Package dictionary provides pure, in-memory lookups from DICOM tags and
// transfer syntax UIDs to their static metadata. It performs no I/O and
// holds no mutable state, so a single package-level Dictionary is safe for
// concurrent use from any number of parsers.
//
// The built-in table is intentionally minimal: it covers the tags a dataset
// parser and DIMSE command codec need to recognize structurally (group
// length, File Meta Information, Item/Delimitation tags, a handful of
// common identifying attributes) rather than the full PS3.6 registry.
package dictionary

import (
	"github.com/sobreiro-labs/dicomkit/types"
	"github.com/sobreiro-labs/dicomkit/vr"
)

// Tag identifies an element by group and element number.
type Tag struct {
	Group   uint16
	Element uint16
}

// TagEntry describes the static metadata the dictionary holds for a tag.
type TagEntry struct {
	Tag  Tag
	VR   vr.VR
	Name string
	// Retired tags are still parsed (VR is still known) but are never
	// emitted by a writer building a new dataset from scratch.
	Retired bool
}

// Well-known structural tags used directly by the parser/writer, exported
// so callers don't have to spell out magic numbers.
var (
	TagItem                    = Tag{0xFFFE, 0xE000}
	TagItemDelimitationItem    = Tag{0xFFFE, 0xE00D}
	TagSequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
	TagSpecificCharacterSet    = Tag{0x0008, 0x0005}
	TagTransferSyntaxUID       = Tag{0x0002, 0x0010}
)

// builtin holds the minimal fallback dictionary. Keys are group*0x10000 +
// element (fits in a uint32) to avoid needing Tag as a map key type here.
var builtin = map[uint32]TagEntry{
	key(0x0002, 0x0000): {Tag: Tag{0x0002, 0x0000}, VR: vr.UnsignedLong, Name: "FileMetaInformationGroupLength"},
	key(0x0002, 0x0001): {Tag: Tag{0x0002, 0x0001}, VR: vr.OtherByte, Name: "FileMetaInformationVersion"},
	key(0x0002, 0x0002): {Tag: Tag{0x0002, 0x0002}, VR: vr.UniqueIdentifier, Name: "MediaStorageSOPClassUID"},
	key(0x0002, 0x0003): {Tag: Tag{0x0002, 0x0003}, VR: vr.UniqueIdentifier, Name: "MediaStorageSOPInstanceUID"},
	key(0x0002, 0x0010): {Tag: Tag{0x0002, 0x0010}, VR: vr.UniqueIdentifier, Name: "TransferSyntaxUID"},
	key(0x0002, 0x0012): {Tag: Tag{0x0002, 0x0012}, VR: vr.UniqueIdentifier, Name: "ImplementationClassUID"},
	key(0x0002, 0x0013): {Tag: Tag{0x0002, 0x0013}, VR: vr.ShortString, Name: "ImplementationVersionName"},
	key(0x0002, 0x0016): {Tag: Tag{0x0002, 0x0016}, VR: vr.ApplicationEntity, Name: "SourceApplicationEntityTitle"},
	key(0x0002, 0x0100): {Tag: Tag{0x0002, 0x0100}, VR: vr.UniqueIdentifier, Name: "PrivateInformationCreatorUID"},
	key(0x0002, 0x0102): {Tag: Tag{0x0002, 0x0102}, VR: vr.OtherByte, Name: "PrivateInformation"},

	key(0x0000, 0x0000): {Tag: Tag{0x0000, 0x0000}, VR: vr.UnsignedLong, Name: "CommandGroupLength"},
	key(0x0000, 0x0002): {Tag: Tag{0x0000, 0x0002}, VR: vr.UniqueIdentifier, Name: "AffectedSOPClassUID"},
	key(0x0000, 0x0003): {Tag: Tag{0x0000, 0x0003}, VR: vr.UniqueIdentifier, Name: "RequestedSOPClassUID"},
	key(0x0000, 0x0100): {Tag: Tag{0x0000, 0x0100}, VR: vr.UnsignedShort, Name: "CommandField"},
	key(0x0000, 0x0110): {Tag: Tag{0x0000, 0x0110}, VR: vr.UnsignedShort, Name: "MessageID"},
	key(0x0000, 0x0120): {Tag: Tag{0x0000, 0x0120}, VR: vr.UnsignedShort, Name: "MessageIDBeingRespondedTo"},
	key(0x0000, 0x0600): {Tag: Tag{0x0000, 0x0600}, VR: vr.ApplicationEntity, Name: "MoveDestination"},
	key(0x0000, 0x0700): {Tag: Tag{0x0000, 0x0700}, VR: vr.UnsignedShort, Name: "Priority"},
	key(0x0000, 0x0800): {Tag: Tag{0x0000, 0x0800}, VR: vr.UnsignedShort, Name: "CommandDataSetType"},
	key(0x0000, 0x0900): {Tag: Tag{0x0000, 0x0900}, VR: vr.UnsignedShort, Name: "Status"},
	key(0x0000, 0x1000): {Tag: Tag{0x0000, 0x1000}, VR: vr.UniqueIdentifier, Name: "AffectedSOPInstanceUID"},
	key(0x0000, 0x1001): {Tag: Tag{0x0000, 0x1001}, VR: vr.UniqueIdentifier, Name: "RequestedSOPInstanceUID"},
	key(0x0000, 0x1002): {Tag: Tag{0x0000, 0x1002}, VR: vr.SignedShort, Name: "EventTypeID"},
	key(0x0000, 0x1005): {Tag: Tag{0x0000, 0x1005}, VR: vr.AttributeTag, Name: "AttributeIdentifierList"},
	key(0x0000, 0x1008): {Tag: Tag{0x0000, 0x1008}, VR: vr.UnsignedShort, Name: "ActionTypeID"},
	key(0x0000, 0x1020): {Tag: Tag{0x0000, 0x1020}, VR: vr.UnsignedShort, Name: "NumberOfRemainingSuboperations"},
	key(0x0000, 0x1021): {Tag: Tag{0x0000, 0x1021}, VR: vr.UnsignedShort, Name: "NumberOfCompletedSuboperations"},
	key(0x0000, 0x1022): {Tag: Tag{0x0000, 0x1022}, VR: vr.UnsignedShort, Name: "NumberOfFailedSuboperations"},
	key(0x0000, 0x1023): {Tag: Tag{0x0000, 0x1023}, VR: vr.UnsignedShort, Name: "NumberOfWarningSuboperations"},

	key(0x0008, 0x0005): {Tag: Tag{0x0008, 0x0005}, VR: vr.CodeString, Name: "SpecificCharacterSet"},
	key(0x0008, 0x0016): {Tag: Tag{0x0008, 0x0016}, VR: vr.UniqueIdentifier, Name: "SOPClassUID"},
	key(0x0008, 0x0018): {Tag: Tag{0x0008, 0x0018}, VR: vr.UniqueIdentifier, Name: "SOPInstanceUID"},
	key(0x0008, 0x0020): {Tag: Tag{0x0008, 0x0020}, VR: vr.Date, Name: "StudyDate"},
	key(0x0008, 0x0030): {Tag: Tag{0x0008, 0x0030}, VR: vr.Time, Name: "StudyTime"},
	key(0x0008, 0x0050): {Tag: Tag{0x0008, 0x0050}, VR: vr.ShortString, Name: "AccessionNumber"},
	key(0x0008, 0x0052): {Tag: Tag{0x0008, 0x0052}, VR: vr.CodeString, Name: "QueryRetrieveLevel"},
	key(0x0008, 0x0054): {Tag: Tag{0x0008, 0x0054}, VR: vr.ApplicationEntity, Name: "RetrieveAETitle"},
	key(0x0008, 0x0060): {Tag: Tag{0x0008, 0x0060}, VR: vr.CodeString, Name: "Modality"},
	key(0x0008, 0x0090): {Tag: Tag{0x0008, 0x0090}, VR: vr.PersonName, Name: "ReferringPhysicianName"},
	key(0x0008, 0x1030): {Tag: Tag{0x0008, 0x1030}, VR: vr.LongString, Name: "StudyDescription"},
	key(0x0008, 0x103E): {Tag: Tag{0x0008, 0x103E}, VR: vr.LongString, Name: "SeriesDescription"},
	key(0x0008, 0x1115): {Tag: Tag{0x0008, 0x1115}, VR: vr.SequenceOfItems, Name: "ReferencedSeriesSequence"},
	key(0x0008, 0x1150): {Tag: Tag{0x0008, 0x1150}, VR: vr.UniqueIdentifier, Name: "ReferencedSOPClassUID"},
	key(0x0008, 0x1155): {Tag: Tag{0x0008, 0x1155}, VR: vr.UniqueIdentifier, Name: "ReferencedSOPInstanceUID"},

	key(0x0010, 0x0010): {Tag: Tag{0x0010, 0x0010}, VR: vr.PersonName, Name: "PatientName"},
	key(0x0010, 0x0020): {Tag: Tag{0x0010, 0x0020}, VR: vr.LongString, Name: "PatientID"},
	key(0x0010, 0x0030): {Tag: Tag{0x0010, 0x0030}, VR: vr.Date, Name: "PatientBirthDate"},
	key(0x0010, 0x0040): {Tag: Tag{0x0010, 0x0040}, VR: vr.CodeString, Name: "PatientSex"},

	key(0x0020, 0x000D): {Tag: Tag{0x0020, 0x000D}, VR: vr.UniqueIdentifier, Name: "StudyInstanceUID"},
	key(0x0020, 0x000E): {Tag: Tag{0x0020, 0x000E}, VR: vr.UniqueIdentifier, Name: "SeriesInstanceUID"},
	key(0x0020, 0x0010): {Tag: Tag{0x0020, 0x0010}, VR: vr.ShortString, Name: "StudyID"},
	key(0x0020, 0x0011): {Tag: Tag{0x0020, 0x0011}, VR: vr.IntegerString, Name: "SeriesNumber"},
	key(0x0020, 0x0013): {Tag: Tag{0x0020, 0x0013}, VR: vr.IntegerString, Name: "InstanceNumber"},

	key(0x7FE0, 0x0010): {Tag: Tag{0x7FE0, 0x0010}, VR: vr.OtherWord, Name: "PixelData"},

	key(0xFFFE, 0xE000): {Tag: TagItem, VR: vr.Invalid, Name: "Item"},
	key(0xFFFE, 0xE00D): {Tag: TagItemDelimitationItem, VR: vr.Invalid, Name: "ItemDelimitationItem"},
	key(0xFFFE, 0xE0DD): {Tag: TagSequenceDelimitationItem, VR: vr.Invalid, Name: "SequenceDelimitationItem"},
}

func key(group, element uint16) uint32 {
	return uint32(group)<<16 | uint32(element)
}

// Dictionary is a pure lookup service over tags, UIDs and transfer syntax
// metadata. The zero value is ready to use.
type Dictionary struct{}

// Default is the package-level Dictionary backed by the built-in table.
var Default = Dictionary{}

// LookupTag returns the static entry for a tag, if known. Private tags
// (odd group number) and anything outside the built-in table report ok=false;
// callers fall back to vr.Unknown in that case.
func (Dictionary) LookupTag(group, element uint16) (TagEntry, bool) {
	if group%2 == 1 {
		return TagEntry{}, false // private tag, no static dictionary entry
	}
	entry, ok := builtin[key(group, element)]
	if ok {
		return entry, true
	}
	if element == 0x0000 {
		return TagEntry{Tag: Tag{group, element}, VR: vr.UnsignedLong, Name: "GroupLength"}, true
	}
	return TagEntry{}, false
}

// LookupTS returns the encoding profile metadata for a transfer syntax UID.
// Unknown UIDs fall back to an explicit-VR little-endian guess, mirroring
// types.GetTransferSyntaxInfo's behavior for vendor-private syntaxes.
func (Dictionary) LookupTS(uid string) types.TransferSyntaxInfo {
	return *types.GetTransferSyntaxInfo(uid)
}

// LookupUID returns the human-readable name for a well-known UID, if any.
// Only transfer syntax UIDs are currently resolved; SOP class UIDs are left
// to the types.SOPClass registry.
func (d Dictionary) LookupUID(uid string) (string, bool) {
	info := d.LookupTS(uid)
	if info.Name == "Unknown" {
		return "", false
	}
	return info.Name, true
}
