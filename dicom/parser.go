package dicom

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sobreiro-labs/dicomkit/charset"
	derrors "github.com/sobreiro-labs/dicomkit/errors"
	"github.com/sobreiro-labs/dicomkit/metrics"
	"github.com/sobreiro-labs/dicomkit/types"
)

// dicmMagic is the 4-byte prefix following the 128-byte preamble.
const dicmMagic = "DICM"

// StopPredicate lets a caller halt parsing deterministically, either before
// or after a specific top-level tag is read, or once a byte offset is
// reached. All three are optional; a Parser halts at the first one that
// matches. Stopping never leaves the Root incomplete in a way that
// confuses a later resume — a stopped Root is simply a valid partial
// dataset.
type StopPredicate struct {
	BeforeTag *Tag
	AfterTag  *Tag
	ByteLimit int64
}

func (s StopPredicate) hasBeforeTag(t Tag) bool {
	return s.BeforeTag != nil && *s.BeforeTag == t
}

func (s StopPredicate) hasAfterTag(t Tag) bool {
	return s.AfterTag != nil && *s.AfterTag == t
}

// ParserOptions configures a Parser's tolerance and halting behavior.
type ParserOptions struct {
	// AllowPartialObject enables recoverable parsing: a malformed child
	// element closes its enclosing sequence/item instead of failing the
	// whole parse, and a few other edge cases (unknown explicit VR,
	// undefined length on a non-SQ/OB/OW/UN tag) degrade instead of error.
	AllowPartialObject bool
	Stop               StopPredicate
	Logger             *logrus.Entry
}

// Parser implements the Part 10 dataset state machine: detect transfer
// syntax, read the preamble and prefix, read File Meta Information, then
// read the main dataset under the negotiated encoding.
type Parser struct {
	opts   ParserOptions
	logger *logrus.Entry
}

// NewParser returns a Parser configured with opts. A nil/zero-value
// Logger defaults to logrus' standard logger.
func NewParser(opts ParserOptions) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Parser{opts: opts, logger: logger}
}

// ParseFile opens path and parses it as a Part 10 DICOM stream.
func ParseFile(path string, opts ParserOptions) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", derrors.ErrIO, err)
	}
	defer f.Close()
	return NewParser(opts).Parse(f)
}

// Parse runs the full Part 10 state machine against r: preamble, prefix,
// File Meta Information, transfer-syntax detection, then the main dataset.
func (p *Parser) Parse(r io.Reader) (*Root, error) {
	br := newByteReader(r)
	root := NewRoot()
	defer func() { metrics.BytesParsed.Add(float64(br.Offset())) }()

	enough, matches := br.peekPart10Magic()
	if !enough {
		p.logger.Debug("stream shorter than a Part 10 preamble, assuming implicit VR little endian from byte 0")
		root.TransferSyntaxUID = types.ImplicitVRLittleEndian
		root.Profile = ProfileForTransferSyntax(root.TransferSyntaxUID)
		if err := p.readDataset(br, root); err != nil {
			return root, err
		}
		return root, nil
	}
	if !matches {
		return root, derrors.Detail(derrors.ErrBadDicomPrefix, "DICM prefix", 128)
	}

	if err := p.readPreamble(br, root); err != nil {
		return root, err
	}
	if err := p.readPrefix(br, root); err != nil {
		return root, err
	}

	fileMeta, err := p.readFileMeta(br)
	if err != nil {
		return root, err
	}
	for _, n := range fileMeta.Nodes() {
		root.Elements.Put(n)
	}

	tsNode, ok := fileMeta.Get(TagTransferSyntaxUID)
	if !ok || tsNode.Leaf == nil {
		return root, derrors.Detail(derrors.ErrEncodingNotSupported, TagTransferSyntaxUID.String(), br.Offset())
	}
	root.TransferSyntaxUID = trimUIDPadding(string(tsNode.Leaf.Value))
	root.Profile = ProfileForTransferSyntax(root.TransferSyntaxUID)

	reader := br
	if root.Profile.Deflated {
		p.logger.WithField("transfer_syntax", root.TransferSyntaxUID).Debug("inflating deflated dataset")
		fr := flate.NewReader(br.r)
		defer fr.Close()
		reader = newByteReader(fr)
	}

	if err := p.readDataset(reader, root); err != nil {
		return root, err
	}
	return root, nil
}

func (p *Parser) readPreamble(br *byteReader, root *Root) error {
	preamble, err := br.readFull(128)
	if err != nil {
		return derrors.Detail(derrors.ErrTruncated, "preamble", br.Offset())
	}
	copy(root.Preamble[:], preamble)
	root.HasPreamble = true
	return nil
}

func (p *Parser) readPrefix(br *byteReader, root *Root) error {
	prefix, err := br.readFull(4)
	if err != nil {
		return derrors.Detail(derrors.ErrTruncated, "DICM prefix", br.Offset())
	}
	if string(prefix) != dicmMagic {
		return derrors.Detail(derrors.ErrBadDicomPrefix, "DICM prefix", br.Offset())
	}
	root.HasDICM = true
	return nil
}

func (p *Parser) readFileMeta(br *byteReader) (*NodeMap, error) {
	ep := newElementParser(br, p.opts.AllowPartialObject)
	nm := NewNodeMap()

	// An empty File Meta Information group: the dataset starts right here.
	if tag, err := br.peekTag(FileMetaProfile.ByteOrder); err == nil && tag.Group != 0x0002 {
		return nm, nil
	}

	first, ctrl, err := ep.readNext(FileMetaProfile)
	if err != nil {
		return nm, derrors.Detail(err, "File Meta Information", br.Offset())
	}
	if ctrl != nil || first == nil {
		return nm, derrors.Detail(derrors.ErrEncodingNotSupported, "File Meta Information", br.Offset())
	}
	nm.Put(first)

	if first.Tag == TagFileMetaGroupLength && first.Leaf != nil {
		groupLength := decodeUint32(first.Leaf.Value)
		end := br.Offset() + int64(groupLength)
		for br.Offset() < end {
			node, ctrl, err := ep.readNext(FileMetaProfile)
			if err != nil {
				if err == io.EOF {
					break
				}
				return nm, err
			}
			if ctrl != nil {
				return nm, derrors.Detail(derrors.ErrEncodingNotSupported, ctrl.Tag.String(), br.Offset())
			}
			nm.Put(node)
		}
		return nm, nil
	}

	// No group length available: read until a non-group-0002 tag appears.
	for {
		tag, err := br.peekTag(FileMetaProfile.ByteOrder)
		if err != nil {
			break
		}
		if tag.Group != 0x0002 {
			break
		}
		node, ctrl, err := ep.readNext(FileMetaProfile)
		if err != nil {
			return nm, err
		}
		if ctrl != nil {
			return nm, derrors.Detail(derrors.ErrEncodingNotSupported, ctrl.Tag.String(), br.Offset())
		}
		nm.Put(node)
	}
	return nm, nil
}

func (p *Parser) readDataset(br *byteReader, root *Root) error {
	ep := newElementParser(br, p.opts.AllowPartialObject)
	for {
		tag, err := br.peekTag(root.Profile.ByteOrder)
		if err == nil && p.opts.Stop.hasBeforeTag(tag) {
			return nil
		}
		if err == nil && p.opts.Stop.ByteLimit > 0 && br.Offset() >= p.opts.Stop.ByteLimit {
			return nil
		}

		node, ctrl, err := ep.readNext(root.Profile)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if p.opts.AllowPartialObject {
				p.logger.WithError(err).Warn("recoverable dataset parse error, stopping")
				return nil
			}
			return err
		}
		if ctrl != nil {
			return derrors.Detail(derrors.ErrUnexpectedDelimiter, ctrl.Tag.String(), br.Offset())
		}

		if node.Tag == TagSpecificCharacterSet && node.Leaf != nil {
			root.SpecificCharacterSet = splitMultiValue(string(node.Leaf.Value))
			if cs, err := charset.NewCascade(root.SpecificCharacterSet); err != nil {
				p.logger.WithError(err).Warn("unrecognized SpecificCharacterSet, keeping default repertoire")
			} else {
				root.CharacterSet = cs
			}
		}

		root.Elements.Put(node)

		if p.opts.Stop.hasAfterTag(node.Tag) {
			return nil
		}
		if p.opts.Stop.ByteLimit > 0 && br.Offset() >= p.opts.Stop.ByteLimit {
			return nil
		}
	}
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func trimUIDPadding(s string) string {
	return strings.TrimRight(strings.TrimSpace(strings.TrimRight(s, "\x00")), " ")
}

func splitMultiValue(s string) []string {
	parts := bytes.Split([]byte(strings.TrimRight(s, "\x00 ")), []byte{'\\'})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(string(p)))
	}
	return out
}
