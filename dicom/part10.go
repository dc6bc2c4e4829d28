package dicom

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"
)

// StripPart10Header removes the DICOM Part 10 preamble and File Meta
// Information to extract just the dataset bytes.
//
// This is useful when sending a dataset via a DIMSE operation such as
// C-STORE, which transmits only the dataset, never the Part 10 wrapper.
// Unlike a hand-rolled byte walk, this reuses the same preamble/prefix/File
// Meta state-machine steps the full Parser uses, so it stays correct as
// that logic evolves.
func StripPart10Header(data []byte) ([]byte, error) {
	br := newByteReader(bytes.NewReader(data))
	p := NewParser(ParserOptions{})

	root := NewRoot()
	if err := p.readPreamble(br, root); err != nil {
		return nil, fmt.Errorf("not a valid DICOM Part 10 file: data too short for the 128-byte preamble: %w", err)
	}
	if err := p.readPrefix(br, root); err != nil {
		return nil, fmt.Errorf("not a valid DICOM Part 10 file: missing DICM prefix: %w", err)
	}
	fileMeta, err := p.readFileMeta(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read File Meta Information: %w", err)
	}

	if tsNode, ok := fileMeta.Get(TagTransferSyntaxUID); ok && tsNode.Leaf != nil {
		logrus.WithField("transfer_syntax", trimUIDPadding(string(tsNode.Leaf.Value))).
			WithField("dataset_start_offset", br.Offset()).
			Debug("found Transfer Syntax UID in File Meta Information")
	}

	offset := int(br.Offset())
	if offset >= len(data) {
		return nil, fmt.Errorf("failed to find dataset after File Meta Information")
	}
	return data[offset:], nil
}

// HasPart10Header reports whether data starts with the 128-byte Part 10
// preamble followed by the "DICM" prefix.
func HasPart10Header(data []byte) bool {
	if len(data) < 132 {
		return false
	}
	return string(data[128:132]) == dicmMagic
}
