// Package vr defines the DICOM Value Representations recognized by this
// toolkit and their encoding properties.
//
// See DICOM Part 5, Section 6.2:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
package vr

import "fmt"

// VR identifies a DICOM Value Representation. The zero value is Invalid,
// used for explicit-VR bytes the dictionary does not recognize.
type VR uint8

// The closed set of Value Representations this toolkit understands. Unlike
// some DICOM implementations, OV, SV and UV are deliberately not modeled:
// this toolkit targets the VR set in active clinical use.
const (
	Invalid VR = iota

	ApplicationEntity           // AE
	AgeString                   // AS
	AttributeTag                // AT
	CodeString                  // CS
	Date                        // DA
	DecimalString               // DS
	DateTime                    // DT
	FloatingPointSingle         // FL
	FloatingPointDouble         // FD
	IntegerString               // IS
	LongString                  // LO
	LongText                    // LT
	OtherByte                   // OB
	OtherDouble                 // OD
	OtherFloat                  // OF
	OtherLong                   // OL
	OtherWord                   // OW
	PersonName                  // PN
	ShortString                 // SH
	SignedLong                  // SL
	SequenceOfItems             // SQ
	SignedShort                 // SS
	ShortText                   // ST
	Time                        // TM
	UnlimitedCharacters         // UC
	UniqueIdentifier            // UI
	UnsignedLong                // UL
	Unknown                     // UN
	UniversalResourceIdentifier // UR
	UnsignedShort               // US
	UnlimitedText               // UT
)

var vrStrings = map[VR]string{
	ApplicationEntity: "AE", AgeString: "AS", AttributeTag: "AT", CodeString: "CS",
	Date: "DA", DecimalString: "DS", DateTime: "DT", FloatingPointSingle: "FL",
	FloatingPointDouble: "FD", IntegerString: "IS", LongString: "LO", LongText: "LT",
	OtherByte: "OB", OtherDouble: "OD", OtherFloat: "OF", OtherLong: "OL",
	OtherWord: "OW", PersonName: "PN", ShortString: "SH", SignedLong: "SL",
	SequenceOfItems: "SQ", SignedShort: "SS", ShortText: "ST", Time: "TM",
	UnlimitedCharacters: "UC", UniqueIdentifier: "UI", UnsignedLong: "UL", Unknown: "UN",
	UniversalResourceIdentifier: "UR", UnsignedShort: "US", UnlimitedText: "UT",
}

var stringToVR = func() map[string]VR {
	m := make(map[string]VR, len(vrStrings))
	for v, s := range vrStrings {
		m[s] = v
	}
	return m
}()

// String returns the two-character code, or "??" for Invalid.
func (v VR) String() string {
	if s, ok := vrStrings[v]; ok {
		return s
	}
	return "??"
}

// Parse looks up the VR for a two-character code. An unrecognized code
// returns Invalid along with an error; callers that want to tolerate
// unknown explicit-VR bytes (per the element parser's VR-discrepancy
// tolerance) can use ParseOrInvalid instead.
func Parse(s string) (VR, error) {
	if v, ok := stringToVR[s]; ok {
		return v, nil
	}
	return Invalid, fmt.Errorf("vr: unrecognized value representation %q", s)
}

// ParseOrInvalid looks up the VR for a two-character code, returning
// Invalid (never an error) when the code is unrecognized.
func ParseOrInvalid(s string) VR {
	return stringToVR[s]
}

// IsValid reports whether s is one of the 31 recognized VR codes.
func IsValid(s string) bool {
	_, ok := stringToVR[s]
	return ok
}

// UsesLongHeaderForm reports whether this VR uses the explicit-VR "long"
// element header (2 reserved bytes + 32-bit length) rather than the "short"
// form (16-bit length immediately following the VR).
//
// See DICOM Part 5, Section 7.1.2.
func (v VR) UsesLongHeaderForm() bool {
	switch v {
	case OtherByte, OtherDouble, OtherFloat, OtherLong, OtherWord,
		SequenceOfItems, UnlimitedCharacters, Unknown, UniversalResourceIdentifier, UnlimitedText:
		return true
	default:
		return false
	}
}

// AllowsUndefinedLength reports whether this VR may legally carry the
// UndefinedLength (0xFFFFFFFF) sentinel. SQ always may; OB/OW/UN may when
// used for encapsulated pixel data sequences.
func (v VR) AllowsUndefinedLength() bool {
	switch v {
	case SequenceOfItems, OtherByte, OtherWord, Unknown:
		return true
	default:
		return false
	}
}

// PaddingByte returns the byte used to pad an odd-length value to even
// length. String VRs pad with space (0x20); binary and UI VRs pad with
// NUL (0x00).
func (v VR) PaddingByte() byte {
	switch v {
	case UniqueIdentifier, OtherByte, OtherDouble, OtherFloat, OtherLong, OtherWord, Unknown:
		return 0x00
	default:
		return ' '
	}
}

// MaxLength returns the maximum value length in bytes for string VRs with a
// fixed ceiling, or 0 when the VR has no fixed maximum (binary VRs, SQ, and
// the "unlimited" string VRs).
func (v VR) MaxLength() int {
	switch v {
	case ApplicationEntity:
		return 16
	case AgeString:
		return 4
	case CodeString:
		return 16
	case Date:
		return 8
	case DecimalString:
		return 16
	case DateTime:
		return 26
	case IntegerString:
		return 12
	case LongString:
		return 64
	case LongText:
		return 10240
	case PersonName:
		return 324
	case ShortString:
		return 16
	case ShortText:
		return 1024
	case Time:
		return 14
	case UniqueIdentifier:
		return 64
	default:
		return 0
	}
}

// IsStringType reports whether values of this VR are character strings.
func (v VR) IsStringType() bool {
	switch v {
	case ApplicationEntity, AgeString, CodeString, Date, DecimalString, DateTime,
		IntegerString, LongString, LongText, PersonName, ShortString, ShortText,
		Time, UnlimitedCharacters, UniqueIdentifier, UniversalResourceIdentifier, UnlimitedText:
		return true
	default:
		return false
	}
}

// IsBinaryType reports whether values of this VR are opaque binary data
// (as opposed to a fixed-width numeric array).
func (v VR) IsBinaryType() bool {
	switch v {
	case OtherByte, OtherDouble, OtherFloat, OtherLong, OtherWord, Unknown:
		return true
	default:
		return false
	}
}

// IsNumericType reports whether values of this VR are fixed-width binary
// numbers (as opposed to numeric strings like DS/IS).
func (v VR) IsNumericType() bool {
	switch v {
	case SignedShort, UnsignedShort, SignedLong, UnsignedLong,
		FloatingPointSingle, FloatingPointDouble, AttributeTag:
		return true
	default:
		return false
	}
}

// IsEncodedUsingCharacterSet reports whether this VR's string value is
// subject to the SpecificCharacterSet cascade (PN/LO/LT/SH/ST/UT/UC carry
// extended character repertoires; the others are always default repertoire).
func (v VR) IsEncodedUsingCharacterSet() bool {
	switch v {
	case PersonName, LongString, LongText, ShortString, ShortText, UnlimitedText, UnlimitedCharacters:
		return true
	default:
		return false
	}
}
