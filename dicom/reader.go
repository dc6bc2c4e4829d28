package dicom

import (
	"bufio"
	"encoding/binary"
	"io"

	derrors "github.com/sobreiro-labs/dicomkit/errors"
)

// byteReader wraps a bufio.Reader with an absolute byte offset and a small
// peek capability, so the parser can implement a before-tag stop predicate
// without consuming the tag it decides to stop before.
type byteReader struct {
	r      *bufio.Reader
	offset int64
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReaderSize(r, 32*1024)}
}

func (b *byteReader) Offset() int64 { return b.offset }

func (b *byteReader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(b.r, buf)
	b.offset += int64(read)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return buf[:read], derrors.ErrTruncated
		}
		return buf[:read], err
	}
	return buf, nil
}

// peekTag looks at the next 4 bytes without consuming them, decoding them
// as a tag under byteOrder. Returns io.EOF if fewer than 4 bytes remain.
func (b *byteReader) peekTag(byteOrder binary.ByteOrder) (Tag, error) {
	peeked, err := b.r.Peek(4)
	if err != nil {
		return Tag{}, err
	}
	return Tag{
		Group:   byteOrder.Uint16(peeked[0:2]),
		Element: byteOrder.Uint16(peeked[2:4]),
	}, nil
}

// peekPart10Magic looks ahead at bytes 0..132 without consuming anything.
// enough reports whether that many bytes are even available: a stream
// shorter than 132 bytes cannot carry a preamble at all, so it is assumed
// to be a bare dataset starting at byte 0 (no preamble, no prefix, no
// ambiguity to report). When enough is true, matches reports whether
// bytes 128..132 spell "DICM"; a full-length stream whose tail doesn't
// match is a corrupted prefix, not a missing one, and is reported as such
// rather than silently reinterpreted as dataset bytes.
func (b *byteReader) peekPart10Magic() (enough, matches bool) {
	peeked, err := b.r.Peek(132)
	if err != nil || len(peeked) < 132 {
		return false, false
	}
	return true, string(peeked[128:132]) == dicmMagic
}

func (b *byteReader) readUint16(byteOrder binary.ByteOrder) (uint16, error) {
	buf, err := b.readFull(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(buf), nil
}

func (b *byteReader) readUint32(byteOrder binary.ByteOrder) (uint32, error) {
	buf, err := b.readFull(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

func (b *byteReader) readTag(byteOrder binary.ByteOrder) (Tag, error) {
	group, err := b.readUint16(byteOrder)
	if err != nil {
		return Tag{}, err
	}
	element, err := b.readUint16(byteOrder)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: group, Element: element}, nil
}
