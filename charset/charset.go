// Package charset maps a DICOM SpecificCharacterSet (0008,0005) value to a
// text decoder and applies the Part 5 Section 6.1.2 "defined terms" cascade:
// a sequence Item inherits its parent's active character set unless it
// carries its own SpecificCharacterSet element.
package charset

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// definedTerms maps the Part 3 Annex C.12.1.1.2 / PS3.2 defined terms
// actually found in practice to an x/text encoding. Entries using ISO 2022
// escape sequences for code extension (ISO 2022 IR 87/149/159) map to a
// whole-stream multi-byte decoder (ISO-2022-JP for IR 87 and IR 159,
// EUC-KR for IR 149); switching between the several code elements a
// multi-valued SpecificCharacterSet names is not supported.
var definedTerms = map[string]encoding.Encoding{
	"":           encoding.Nop, // default repertoire (ISO-IR 6, ASCII)
	"ISO_IR 6":   encoding.Nop,
	"ISO 2022 IR 6": encoding.Nop,
	"ISO_IR 100": charmap.ISO8859_1,
	"ISO 2022 IR 100": charmap.ISO8859_1,
	"ISO_IR 101": charmap.ISO8859_2,
	"ISO 2022 IR 101": charmap.ISO8859_2,
	"ISO_IR 109": charmap.ISO8859_3,
	"ISO 2022 IR 109": charmap.ISO8859_3,
	"ISO_IR 110": charmap.ISO8859_4,
	"ISO 2022 IR 110": charmap.ISO8859_4,
	"ISO_IR 144": charmap.ISO8859_5,
	"ISO 2022 IR 144": charmap.ISO8859_5,
	"ISO_IR 127": charmap.ISO8859_6,
	"ISO 2022 IR 127": charmap.ISO8859_6,
	"ISO_IR 126": charmap.ISO8859_7,
	"ISO 2022 IR 126": charmap.ISO8859_7,
	"ISO_IR 138": charmap.ISO8859_8,
	"ISO 2022 IR 138": charmap.ISO8859_8,
	"ISO_IR 148": charmap.ISO8859_9,
	"ISO 2022 IR 148": charmap.ISO8859_9,
	"ISO_IR 13":  japanese.ShiftJIS,
	"ISO 2022 IR 13": japanese.ShiftJIS,
	"ISO 2022 IR 87": japanese.ISO2022JP,
	"ISO 2022 IR 159": japanese.ISO2022JP,
	"ISO 2022 IR 149": korean.EUCKR,
	"ISO_IR 192": encoding.Nop, // UTF-8
	"GB18030":    simplifiedchinese.GB18030,
	"GBK":        simplifiedchinese.GBK,
}

// Cascade is the active character-set decoder for one level of a dataset
// tree: a Root or an Item. It wraps the x/text Encoding (single- or
// multi-byte) selected by the first value of a SpecificCharacterSet element.
type Cascade struct {
	terms []string
	enc   encoding.Encoding
}

// Default is the character set assumed when no SpecificCharacterSet
// element is present: the default character repertoire, ISO-IR 6.
var Default = &Cascade{enc: encoding.Nop}

// NewCascade builds a Cascade from a SpecificCharacterSet element's
// backslash-split values. An empty values list returns Default. Only the
// first value is used for code-element selection; later values (used by
// ISO 2022 multi-byte code extensions to name additional G1 sets) are kept
// for String() but not separately decoded.
func NewCascade(values []string) (*Cascade, error) {
	if len(values) == 0 {
		return Default, nil
	}
	term := strings.TrimSpace(values[0])
	enc, ok := definedTerms[term]
	if !ok {
		return nil, fmt.Errorf("charset: unrecognized SpecificCharacterSet term %q", term)
	}
	return &Cascade{terms: values, enc: enc}, nil
}

// Child returns the Cascade an Item should use: itself, unless the item
// carries its own non-empty SpecificCharacterSet values, in which case a
// new Cascade built from those values is returned.
func (c *Cascade) Child(values []string) (*Cascade, error) {
	if len(values) == 0 {
		return c, nil
	}
	return NewCascade(values)
}

// Decode converts raw dataset bytes to a UTF-8 string, trimming the
// trailing NUL/space padding byte DICOM values may carry. Returns an error
// only if the encoding rejects the byte sequence outright; callers that
// need a best-effort string for logging can ignore it and use the raw
// untransformed bytes instead.
func (c *Cascade) Decode(raw []byte) (string, error) {
	trimmed := bytes.TrimRight(raw, "\x00 ")
	out, err := c.enc.NewDecoder().Bytes(trimmed)
	if err != nil {
		return "", fmt.Errorf("charset: decode with %v: %w", c.terms, err)
	}
	return string(out), nil
}

// String returns the SpecificCharacterSet value this Cascade was built
// from, for re-emission by a writer that must preserve it.
func (c *Cascade) String() string {
	return strings.Join(c.terms, "\\")
}
