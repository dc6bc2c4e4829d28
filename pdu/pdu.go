package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	derrors "github.com/sobreiro-labs/dicomkit/errors"
)

// PduType identifies a top-level Upper Layer PDU or one of its variable-item
// sub-items. The wire value for every known type round-trips through
// byte(t) unchanged; unrecognized values are carried as InvalidPduType so a
// caller can still report exactly which byte it was.
type PduType byte

const (
	TypeAssocRQ PduType = 0x01
	TypeAssocAC PduType = 0x02
	TypeAssocRJ PduType = 0x03

	TypePresentationDataItem PduType = 0x04

	TypeReleaseRQ PduType = 0x05
	TypeReleaseRP PduType = 0x06
	TypeAbort     PduType = 0x07

	TypeApplicationContextItem PduType = 0x10

	TypeAssocRQPresentationContext PduType = 0x20
	TypeAssocACPresentationContext PduType = 0x21

	TypeAbstractSyntaxItem PduType = 0x30
	TypeTransferSyntaxItem PduType = 0x40

	TypeUserInformationItem PduType = 0x50

	TypeMaxLengthItem                         PduType = 0x51
	TypeImplementationClassUIDItem            PduType = 0x52
	TypeAsyncOperationsWindowItem             PduType = 0x53
	TypeRoleSelectionItem                     PduType = 0x54
	TypeImplementationVersionNameItem         PduType = 0x55
	TypeSOPClassExtendedNegotiationItem       PduType = 0x56
	TypeSOPClassCommonExtendedNegotiationItem PduType = 0x57
	TypeUserIdentityItem                      PduType = 0x58
	TypeUserIdentityNegotiationItem           PduType = 0x59
)

var pduTypeNames = map[PduType]string{
	TypeAssocRQ: "A-ASSOCIATE-RQ", TypeAssocAC: "A-ASSOCIATE-AC", TypeAssocRJ: "A-ASSOCIATE-RJ",
	TypePresentationDataItem: "P-DATA-TF",
	TypeReleaseRQ:            "A-RELEASE-RQ", TypeReleaseRP: "A-RELEASE-RP", TypeAbort: "A-ABORT",
	TypeApplicationContextItem:                "application-context-item",
	TypeAssocRQPresentationContext:            "presentation-context-item-rq",
	TypeAssocACPresentationContext:            "presentation-context-item-ac",
	TypeAbstractSyntaxItem:                    "abstract-syntax-item",
	TypeTransferSyntaxItem:                    "transfer-syntax-item",
	TypeUserInformationItem:                   "user-information-item",
	TypeMaxLengthItem:                         "max-length-item",
	TypeImplementationClassUIDItem:            "implementation-class-uid-item",
	TypeAsyncOperationsWindowItem:             "async-operations-window-item",
	TypeRoleSelectionItem:                     "role-selection-item",
	TypeImplementationVersionNameItem:         "implementation-version-name-item",
	TypeSOPClassExtendedNegotiationItem:       "sop-class-extended-negotiation-item",
	TypeSOPClassCommonExtendedNegotiationItem: "sop-class-common-extended-negotiation-item",
	TypeUserIdentityItem:                      "user-identity-item",
	TypeUserIdentityNegotiationItem:           "user-identity-negotiation-item",
}

func (t PduType) String() string {
	if name, ok := pduTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// InvalidPduType reports a PDU/item type byte outside the known vocabulary.
type InvalidPduType byte

func (e InvalidPduType) Error() string {
	return fmt.Sprintf("%v: 0x%02x", derrors.ErrInvalidPduType, byte(e))
}

func (e InvalidPduType) Unwrap() error { return derrors.ErrInvalidPduType }

// Pdu is implemented by every Upper Layer PDU and variable-item type: the
// six association/release/abort PDUs, PresentationDataItem, and the
// fifteen sub-items nested inside association PDUs.
type Pdu interface {
	PduType() PduType
	writeBody(w *bytes.Buffer) error
}

// Encode serializes p as a complete wire PDU: type byte, reserved byte,
// 4-byte big-endian length, then the type's own body.
func Encode(p Pdu) ([]byte, error) {
	var body bytes.Buffer
	if err := p.writeBody(&body); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteByte(byte(p.PduType()))
	out.WriteByte(0) // reserved
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	out.Write(lenBuf[:])
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Decode reads one complete PDU from r: 6-byte header (type, reserved,
// length) followed by exactly `length` bytes of body, dispatched to the
// variant named by the type byte. An unrecognized type byte yields
// InvalidPduType wrapping derrors.ErrInvalidPduType.
func Decode(r io.Reader) (Pdu, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	pduType := PduType(header[0])
	length := binary.BigEndian.Uint32(header[2:6])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading %s body: %w", pduType, err)
	}
	return decodeBody(pduType, body)
}

func decodeBody(pduType PduType, body []byte) (Pdu, error) {
	br := bytes.NewReader(body)
	switch pduType {
	case TypeAssocRQ:
		return readAssocRQ(br)
	case TypeAssocAC:
		return readAssocAC(br)
	case TypeAssocRJ:
		return readAssocRJ(br)
	case TypePresentationDataItem:
		return readPresentationDataItem(br, len(body))
	case TypeReleaseRQ:
		return ReleaseRQ{}, nil
	case TypeReleaseRP:
		return ReleaseRP{}, nil
	case TypeAbort:
		return readAbort(br)
	case TypeApplicationContextItem:
		return ApplicationContextItem{Name: trimUID(string(body))}, nil
	case TypeAssocRQPresentationContext:
		return decodePresentationContextRQ(body)
	case TypeAssocACPresentationContext:
		return decodePresentationContextAC(body)
	case TypeAbstractSyntaxItem:
		return AbstractSyntaxItem{Name: trimUID(string(body))}, nil
	case TypeTransferSyntaxItem:
		return TransferSyntaxItem{Name: trimUID(string(body))}, nil
	case TypeUserInformationItem:
		return decodeUserInformation(body)
	case TypeMaxLengthItem:
		return readMaxLengthItem(br)
	case TypeImplementationClassUIDItem:
		return ImplementationClassUIDItem{UID: trimUID(string(body))}, nil
	case TypeAsyncOperationsWindowItem:
		return readAsyncOperationsWindowItem(br)
	case TypeRoleSelectionItem:
		return readRoleSelectionItem(br)
	case TypeImplementationVersionNameItem:
		return ImplementationVersionNameItem{Name: trimUID(string(body))}, nil
	case TypeSOPClassExtendedNegotiationItem:
		return decodeSOPClassExtendedNegotiationItem(body)
	case TypeSOPClassCommonExtendedNegotiationItem:
		return decodeSOPClassCommonExtendedNegotiationItem(body)
	case TypeUserIdentityItem:
		return readUserIdentityItem(br)
	case TypeUserIdentityNegotiationItem:
		return readUserIdentityNegotiationItem(br)
	default:
		return nil, InvalidPduType(byte(pduType))
	}
}

// --- shared item header helpers -------------------------------------------

func writeItemHeader(buf *bytes.Buffer, t PduType, length int) {
	buf.WriteByte(byte(t))
	buf.WriteByte(0)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(length))
	buf.Write(b[:])
}

// readItemHeader reads a 4-byte sub-item header (type, reserved, 2-byte
// length) and returns the type and the length-prefixed value slice.
func readItemHeader(r *bytes.Reader) (PduType, []byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	t := PduType(hdr[0])
	length := binary.BigEndian.Uint16(hdr[2:4])
	value := make([]byte, length)
	if _, err := io.ReadFull(r, value); err != nil {
		return 0, nil, err
	}
	return t, value, nil
}

func trimUID(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

func padUID(s string) []byte {
	b := []byte(s)
	if len(b)%2 == 1 {
		b = append(b, 0)
	}
	return b
}

// --- AssocRQ ---------------------------------------------------------------

// AssocRQ is an A-ASSOCIATE-RQ PDU.
type AssocRQ struct {
	ProtocolVersion      uint16
	CalledAE             string
	CallingAE            string
	ApplicationContext   ApplicationContextItem
	PresentationContexts []AssocRQPresentationContext
	UserInfo             UserInformationItem
}

func (AssocRQ) PduType() PduType { return TypeAssocRQ }

func (p AssocRQ) writeBody(buf *bytes.Buffer) error {
	var fixed [68]byte
	binary.BigEndian.PutUint16(fixed[0:2], p.ProtocolVersion)
	copy(fixed[4:20], fmt.Sprintf("%-16s", p.CalledAE))
	copy(fixed[20:36], fmt.Sprintf("%-16s", p.CallingAE))
	buf.Write(fixed[:])

	if err := writeSubPdu(buf, p.ApplicationContext); err != nil {
		return err
	}
	for _, ctx := range p.PresentationContexts {
		if err := writeSubPdu(buf, ctx); err != nil {
			return err
		}
	}
	return writeSubPdu(buf, p.UserInfo)
}

func readAssocRQ(r *bytes.Reader) (AssocRQ, error) {
	var fixed [68]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return AssocRQ{}, err
	}
	out := AssocRQ{
		ProtocolVersion: binary.BigEndian.Uint16(fixed[0:2]),
		CalledAE:        strings.TrimSpace(string(fixed[4:20])),
		CallingAE:       strings.TrimSpace(string(fixed[20:36])),
	}
	for r.Len() > 0 {
		t, value, err := readItemHeader(r)
		if err != nil {
			return out, err
		}
		switch t {
		case TypeApplicationContextItem:
			out.ApplicationContext = ApplicationContextItem{Name: trimUID(string(value))}
		case TypeAssocRQPresentationContext:
			ctx, err := decodePresentationContextRQ(value)
			if err != nil {
				return out, err
			}
			out.PresentationContexts = append(out.PresentationContexts, ctx)
		case TypeUserInformationItem:
			ui, err := decodeUserInformation(value)
			if err != nil {
				return out, err
			}
			out.UserInfo = ui
		default:
			return out, InvalidPduType(byte(t))
		}
	}
	return out, nil
}

// --- AssocAC ---------------------------------------------------------------

// AssocAC is an A-ASSOCIATE-AC PDU.
type AssocAC struct {
	ProtocolVersion      uint16
	CalledAE             string
	CallingAE            string
	ApplicationContext   ApplicationContextItem
	PresentationContexts []AssocACPresentationContext
	UserInfo             UserInformationItem
}

func (AssocAC) PduType() PduType { return TypeAssocAC }

func (p AssocAC) writeBody(buf *bytes.Buffer) error {
	var fixed [68]byte
	binary.BigEndian.PutUint16(fixed[0:2], p.ProtocolVersion)
	copy(fixed[4:20], fmt.Sprintf("%-16s", p.CalledAE))
	copy(fixed[20:36], fmt.Sprintf("%-16s", p.CallingAE))
	buf.Write(fixed[:])

	if err := writeSubPdu(buf, p.ApplicationContext); err != nil {
		return err
	}
	for _, ctx := range p.PresentationContexts {
		if err := writeSubPdu(buf, ctx); err != nil {
			return err
		}
	}
	return writeSubPdu(buf, p.UserInfo)
}

func readAssocAC(r *bytes.Reader) (AssocAC, error) {
	var fixed [68]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return AssocAC{}, err
	}
	out := AssocAC{
		ProtocolVersion: binary.BigEndian.Uint16(fixed[0:2]),
		CalledAE:        strings.TrimSpace(string(fixed[4:20])),
		CallingAE:       strings.TrimSpace(string(fixed[20:36])),
	}
	for r.Len() > 0 {
		t, value, err := readItemHeader(r)
		if err != nil {
			return out, err
		}
		switch t {
		case TypeApplicationContextItem:
			out.ApplicationContext = ApplicationContextItem{Name: trimUID(string(value))}
		case TypeAssocACPresentationContext:
			ctx, err := decodePresentationContextAC(value)
			if err != nil {
				return out, err
			}
			out.PresentationContexts = append(out.PresentationContexts, ctx)
		case TypeUserInformationItem:
			ui, err := decodeUserInformation(value)
			if err != nil {
				return out, err
			}
			out.UserInfo = ui
		default:
			return out, InvalidPduType(byte(t))
		}
	}
	return out, nil
}

// --- AssocRJ ---------------------------------------------------------------

// AssocRJ is an A-ASSOCIATE-RJ PDU. Result is 1 (rejected-permanent) or 2
// (rejected-transient); Source/Reason select the text from
// derrors.AssocRJReasonText.
type AssocRJ struct {
	Result byte
	Source byte
	Reason byte
}

func (AssocRJ) PduType() PduType { return TypeAssocRJ }

// ReasonText returns the Part 8 Table 9-21 string for this rejection.
func (p AssocRJ) ReasonText() string { return derrors.AssocRJReasonText(p.Source, p.Reason) }

func (p AssocRJ) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{0, p.Result, p.Source, p.Reason})
	return nil
}

func readAssocRJ(r *bytes.Reader) (AssocRJ, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return AssocRJ{}, err
	}
	return AssocRJ{Result: b[1], Source: b[2], Reason: b[3]}, nil
}

// --- ReleaseRQ / ReleaseRP ---------------------------------------------------

// ReleaseRQ is an A-RELEASE-RQ PDU. It has no parameters beyond 4 reserved
// bytes.
type ReleaseRQ struct{}

func (ReleaseRQ) PduType() PduType { return TypeReleaseRQ }

func (ReleaseRQ) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{0, 0, 0, 0})
	return nil
}

// ReleaseRP is an A-RELEASE-RP PDU, likewise parameterless.
type ReleaseRP struct{}

func (ReleaseRP) PduType() PduType { return TypeReleaseRP }

func (ReleaseRP) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{0, 0, 0, 0})
	return nil
}

// --- Abort -------------------------------------------------------------

// Abort is an A-ABORT PDU. Source 0 is the DICOM UL service-user; source 2
// is the service-provider, in which case Reason indexes
// derrors.AbortReasonText.
type Abort struct {
	Source byte
	Reason byte
}

func (Abort) PduType() PduType { return TypeAbort }

// ReasonText returns the Part 8 Table 9-26 string for this abort.
func (p Abort) ReasonText() string { return derrors.AbortReasonText(p.Reason) }

func (p Abort) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{0, 0, p.Source, p.Reason})
	return nil
}

func readAbort(r *bytes.Reader) (Abort, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Abort{}, err
	}
	return Abort{Source: b[2], Reason: b[3]}, nil
}

// --- PresentationDataItem / PresentationDataValue --------------------------

// PresentationDataItem is a P-DATA-TF PDU: one or more PresentationDataValue
// fragments (PDVs), each bound to a single presentation context.
type PresentationDataItem struct {
	Values []PresentationDataValue
}

func (PresentationDataItem) PduType() PduType { return TypePresentationDataItem }

func (p PresentationDataItem) writeBody(buf *bytes.Buffer) error {
	for _, v := range p.Values {
		v.writeTo(buf)
	}
	return nil
}

// PresentationDataValue is one PDV: a context ID, a one-byte message
// control header, and a command or dataset fragment. Bit 0 of the header
// set means "this fragment is a Command"; bit 1 set means "this is the
// last fragment of the message".
type PresentationDataValue struct {
	ContextID byte
	IsCommand bool
	IsLast    bool
	Data      []byte
}

func (v PresentationDataValue) msgHeader() byte {
	var h byte
	if v.IsCommand {
		h |= 0x01
	}
	if v.IsLast {
		h |= 0x02
	}
	return h
}

func (v PresentationDataValue) writeTo(buf *bytes.Buffer) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(2+len(v.Data)))
	buf.Write(lenBuf[:])
	buf.WriteByte(v.ContextID)
	buf.WriteByte(v.msgHeader())
	buf.Write(v.Data)
}

func readPresentationDataItem(r *bytes.Reader, bodyLen int) (PresentationDataItem, error) {
	var out PresentationDataItem
	remaining := bodyLen
	for remaining > 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return out, err
		}
		pdvLen := binary.BigEndian.Uint32(lenBuf[:])
		var hdr [2]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return out, err
		}
		data := make([]byte, int(pdvLen)-2)
		if _, err := io.ReadFull(r, data); err != nil {
			return out, err
		}
		out.Values = append(out.Values, PresentationDataValue{
			ContextID: hdr[0],
			IsCommand: hdr[1]&0x01 != 0,
			IsLast:    hdr[1]&0x02 != 0,
			Data:      data,
		})
		remaining -= 4 + int(pdvLen)
	}
	return out, nil
}

// --- ApplicationContextItem, AbstractSyntaxItem, TransferSyntaxItem --------

// ApplicationContextItem names the negotiated DICOM application context,
// normally types.ApplicationContextUID.
type ApplicationContextItem struct{ Name string }

func (ApplicationContextItem) PduType() PduType { return TypeApplicationContextItem }
func (p ApplicationContextItem) writeBody(buf *bytes.Buffer) error {
	buf.Write(padUID(p.Name))
	return nil
}

// AbstractSyntaxItem names a proposed SOP Class UID within a presentation
// context.
type AbstractSyntaxItem struct{ Name string }

func (AbstractSyntaxItem) PduType() PduType { return TypeAbstractSyntaxItem }
func (p AbstractSyntaxItem) writeBody(buf *bytes.Buffer) error {
	buf.Write(padUID(p.Name))
	return nil
}

// TransferSyntaxItem names one proposed or accepted transfer syntax UID.
type TransferSyntaxItem struct{ Name string }

func (TransferSyntaxItem) PduType() PduType { return TypeTransferSyntaxItem }
func (p TransferSyntaxItem) writeBody(buf *bytes.Buffer) error {
	buf.Write(padUID(p.Name))
	return nil
}

// --- AssocRQPresentationContext / AssocACPresentationContext ---------------

// AssocRQPresentationContext is a presentation-context-item (RQ): an
// abstract syntax plus every transfer syntax the caller will accept for it.
type AssocRQPresentationContext struct {
	ID               byte
	AbstractSyntax   AbstractSyntaxItem
	TransferSyntaxes []TransferSyntaxItem
}

func (AssocRQPresentationContext) PduType() PduType { return TypeAssocRQPresentationContext }

func (p AssocRQPresentationContext) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{p.ID, 0, 0, 0})
	if err := writeSubPdu(buf, p.AbstractSyntax); err != nil {
		return err
	}
	for _, ts := range p.TransferSyntaxes {
		if err := writeSubPdu(buf, ts); err != nil {
			return err
		}
	}
	return nil
}

func decodePresentationContextRQ(value []byte) (AssocRQPresentationContext, error) {
	if len(value) < 4 {
		return AssocRQPresentationContext{}, fmt.Errorf("presentation context rq too short: %d bytes", len(value))
	}
	out := AssocRQPresentationContext{ID: value[0]}
	r := bytes.NewReader(value[4:])
	for r.Len() > 0 {
		t, v, err := readItemHeader(r)
		if err != nil {
			return out, err
		}
		switch t {
		case TypeAbstractSyntaxItem:
			out.AbstractSyntax = AbstractSyntaxItem{Name: trimUID(string(v))}
		case TypeTransferSyntaxItem:
			out.TransferSyntaxes = append(out.TransferSyntaxes, TransferSyntaxItem{Name: trimUID(string(v))})
		default:
			return out, InvalidPduType(byte(t))
		}
	}
	return out, nil
}

// AssocACPresentationContext is a presentation-context-item (AC): the
// negotiation Result plus, when accepted, the single chosen transfer
// syntax.
type AssocACPresentationContext struct {
	ID             byte
	Result         byte
	TransferSyntax TransferSyntaxItem
}

func (AssocACPresentationContext) PduType() PduType { return TypeAssocACPresentationContext }

func (p AssocACPresentationContext) writeBody(buf *bytes.Buffer) error {
	buf.Write([]byte{p.ID, 0, p.Result, 0})
	if p.TransferSyntax.Name == "" {
		return nil
	}
	return writeSubPdu(buf, p.TransferSyntax)
}

func decodePresentationContextAC(value []byte) (AssocACPresentationContext, error) {
	if len(value) < 4 {
		return AssocACPresentationContext{}, fmt.Errorf("presentation context ac too short: %d bytes", len(value))
	}
	out := AssocACPresentationContext{ID: value[0], Result: value[2]}
	r := bytes.NewReader(value[4:])
	for r.Len() > 0 {
		t, v, err := readItemHeader(r)
		if err != nil {
			return out, err
		}
		if t != TypeTransferSyntaxItem {
			return out, InvalidPduType(byte(t))
		}
		out.TransferSyntax = TransferSyntaxItem{Name: trimUID(string(v))}
	}
	return out, nil
}

// --- UserInformationItem and its sub-items ----------------------------------

// UserInformationItem carries the negotiated association-level parameters:
// max PDU length, implementation identity, and the optional extended
// negotiation sub-items.
type UserInformationItem struct {
	MaxLength                    MaxLengthItem
	ImplementationClassUID       ImplementationClassUIDItem
	AsyncOperationsWindow        *AsyncOperationsWindowItem
	RoleSelections               []RoleSelectionItem
	ImplementationVersionName    *ImplementationVersionNameItem
	SOPClassExtendedNegotiations []SOPClassExtendedNegotiationItem
	SOPClassCommonExtendedNegs   []SOPClassCommonExtendedNegotiationItem
	UserIdentity                 *UserIdentityItem
	UserIdentityNegotiationReply *UserIdentityNegotiationItem
}

func (UserInformationItem) PduType() PduType { return TypeUserInformationItem }

func (p UserInformationItem) writeBody(buf *bytes.Buffer) error {
	if err := writeSubPdu(buf, p.MaxLength); err != nil {
		return err
	}
	if p.ImplementationClassUID.UID != "" {
		if err := writeSubPdu(buf, p.ImplementationClassUID); err != nil {
			return err
		}
	}
	if p.AsyncOperationsWindow != nil {
		if err := writeSubPdu(buf, *p.AsyncOperationsWindow); err != nil {
			return err
		}
	}
	for _, rs := range p.RoleSelections {
		if err := writeSubPdu(buf, rs); err != nil {
			return err
		}
	}
	if p.ImplementationVersionName != nil {
		if err := writeSubPdu(buf, *p.ImplementationVersionName); err != nil {
			return err
		}
	}
	for _, sc := range p.SOPClassExtendedNegotiations {
		if err := writeSubPdu(buf, sc); err != nil {
			return err
		}
	}
	for _, sc := range p.SOPClassCommonExtendedNegs {
		if err := writeSubPdu(buf, sc); err != nil {
			return err
		}
	}
	if p.UserIdentity != nil {
		if err := writeSubPdu(buf, *p.UserIdentity); err != nil {
			return err
		}
	}
	if p.UserIdentityNegotiationReply != nil {
		if err := writeSubPdu(buf, *p.UserIdentityNegotiationReply); err != nil {
			return err
		}
	}
	return nil
}

func decodeUserInformation(value []byte) (UserInformationItem, error) {
	var out UserInformationItem
	r := bytes.NewReader(value)
	for r.Len() > 0 {
		t, v, err := readItemHeader(r)
		if err != nil {
			return out, err
		}
		switch t {
		case TypeMaxLengthItem:
			item, err := readMaxLengthItem(bytes.NewReader(v))
			if err != nil {
				return out, err
			}
			out.MaxLength = item
		case TypeImplementationClassUIDItem:
			out.ImplementationClassUID = ImplementationClassUIDItem{UID: trimUID(string(v))}
		case TypeAsyncOperationsWindowItem:
			item, err := readAsyncOperationsWindowItem(bytes.NewReader(v))
			if err != nil {
				return out, err
			}
			out.AsyncOperationsWindow = &item
		case TypeRoleSelectionItem:
			item, err := readRoleSelectionItem(bytes.NewReader(v))
			if err != nil {
				return out, err
			}
			out.RoleSelections = append(out.RoleSelections, item)
		case TypeImplementationVersionNameItem:
			item := ImplementationVersionNameItem{Name: trimUID(string(v))}
			out.ImplementationVersionName = &item
		case TypeSOPClassExtendedNegotiationItem:
			item, err := decodeSOPClassExtendedNegotiationItem(v)
			if err != nil {
				return out, err
			}
			out.SOPClassExtendedNegotiations = append(out.SOPClassExtendedNegotiations, item)
		case TypeSOPClassCommonExtendedNegotiationItem:
			item, err := decodeSOPClassCommonExtendedNegotiationItem(v)
			if err != nil {
				return out, err
			}
			out.SOPClassCommonExtendedNegs = append(out.SOPClassCommonExtendedNegs, item)
		case TypeUserIdentityItem:
			item, err := readUserIdentityItem(bytes.NewReader(v))
			if err != nil {
				return out, err
			}
			out.UserIdentity = &item
		case TypeUserIdentityNegotiationItem:
			item, err := readUserIdentityNegotiationItem(bytes.NewReader(v))
			if err != nil {
				return out, err
			}
			out.UserIdentityNegotiationReply = &item
		default:
			return out, InvalidPduType(byte(t))
		}
	}
	return out, nil
}

// MaxLengthItem advertises the maximum PDU length the sender will accept;
// 0 means unlimited.
type MaxLengthItem struct{ MaxLength uint32 }

func (MaxLengthItem) PduType() PduType { return TypeMaxLengthItem }
func (p MaxLengthItem) writeBody(buf *bytes.Buffer) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], p.MaxLength)
	buf.Write(b[:])
	return nil
}
func readMaxLengthItem(r *bytes.Reader) (MaxLengthItem, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return MaxLengthItem{}, err
	}
	return MaxLengthItem{MaxLength: binary.BigEndian.Uint32(b[:])}, nil
}

// ImplementationClassUIDItem identifies the sending implementation.
type ImplementationClassUIDItem struct{ UID string }

func (ImplementationClassUIDItem) PduType() PduType { return TypeImplementationClassUIDItem }
func (p ImplementationClassUIDItem) writeBody(buf *bytes.Buffer) error {
	buf.Write(padUID(p.UID))
	return nil
}

// AsyncOperationsWindowItem negotiates the maximum number of outstanding
// operations in each direction; 0 means unlimited.
type AsyncOperationsWindowItem struct {
	MaxOperationsInvoked   uint16
	MaxOperationsPerformed uint16
}

func (AsyncOperationsWindowItem) PduType() PduType { return TypeAsyncOperationsWindowItem }
func (p AsyncOperationsWindowItem) writeBody(buf *bytes.Buffer) error {
	var b [4]byte
	binary.BigEndian.PutUint16(b[0:2], p.MaxOperationsInvoked)
	binary.BigEndian.PutUint16(b[2:4], p.MaxOperationsPerformed)
	buf.Write(b[:])
	return nil
}
func readAsyncOperationsWindowItem(r *bytes.Reader) (AsyncOperationsWindowItem, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return AsyncOperationsWindowItem{}, err
	}
	return AsyncOperationsWindowItem{
		MaxOperationsInvoked:   binary.BigEndian.Uint16(b[0:2]),
		MaxOperationsPerformed: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// RoleSelectionItem negotiates SCU/SCP role support for one SOP class.
type RoleSelectionItem struct {
	SOPClassUID string
	SCURole     byte
	SCPRole     byte
}

func (RoleSelectionItem) PduType() PduType { return TypeRoleSelectionItem }
func (p RoleSelectionItem) writeBody(buf *bytes.Buffer) error {
	uid := padUID(p.SOPClassUID)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(uid)))
	buf.Write(lenBuf[:])
	buf.Write(uid)
	buf.WriteByte(p.SCURole)
	buf.WriteByte(p.SCPRole)
	return nil
}
func readRoleSelectionItem(r *bytes.Reader) (RoleSelectionItem, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return RoleSelectionItem{}, err
	}
	uidLen := binary.BigEndian.Uint16(lenBuf[:])
	uid := make([]byte, uidLen)
	if _, err := io.ReadFull(r, uid); err != nil {
		return RoleSelectionItem{}, err
	}
	var roles [2]byte
	if _, err := io.ReadFull(r, roles[:]); err != nil {
		return RoleSelectionItem{}, err
	}
	return RoleSelectionItem{SOPClassUID: trimUID(string(uid)), SCURole: roles[0], SCPRole: roles[1]}, nil
}

// ImplementationVersionNameItem identifies the sending implementation's
// version string.
type ImplementationVersionNameItem struct{ Name string }

func (ImplementationVersionNameItem) PduType() PduType { return TypeImplementationVersionNameItem }
func (p ImplementationVersionNameItem) writeBody(buf *bytes.Buffer) error {
	buf.Write(padUID(p.Name))
	return nil
}

// SOPClassExtendedNegotiationItem carries service-class-specific
// application information for one SOP class.
type SOPClassExtendedNegotiationItem struct {
	SOPClassUID         string
	ServiceClassAppInfo []byte
}

func (SOPClassExtendedNegotiationItem) PduType() PduType { return TypeSOPClassExtendedNegotiationItem }
func (p SOPClassExtendedNegotiationItem) writeBody(buf *bytes.Buffer) error {
	uid := padUID(p.SOPClassUID)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(uid)))
	buf.Write(lenBuf[:])
	buf.Write(uid)
	buf.Write(p.ServiceClassAppInfo)
	return nil
}
func decodeSOPClassExtendedNegotiationItem(value []byte) (SOPClassExtendedNegotiationItem, error) {
	if len(value) < 2 {
		return SOPClassExtendedNegotiationItem{}, fmt.Errorf("sop class extended negotiation item too short")
	}
	uidLen := int(binary.BigEndian.Uint16(value[0:2]))
	if 2+uidLen > len(value) {
		return SOPClassExtendedNegotiationItem{}, fmt.Errorf("sop class extended negotiation uid exceeds item length")
	}
	return SOPClassExtendedNegotiationItem{
		SOPClassUID:         trimUID(string(value[2 : 2+uidLen])),
		ServiceClassAppInfo: append([]byte(nil), value[2+uidLen:]...),
	}, nil
}

// SOPClassCommonExtendedNegotiationItem carries the common extended
// negotiation for one SOP class: its related service class, and the
// general SOP classes it relates to.
type SOPClassCommonExtendedNegotiationItem struct {
	SOPClassUID                string
	ServiceClassUID            string
	RelatedGeneralSOPClassUIDs []string
}

func (SOPClassCommonExtendedNegotiationItem) PduType() PduType {
	return TypeSOPClassCommonExtendedNegotiationItem
}

func (p SOPClassCommonExtendedNegotiationItem) writeBody(buf *bytes.Buffer) error {
	sopUID := padUID(p.SOPClassUID)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(sopUID)))
	buf.Write(u16[:])
	buf.Write(sopUID)

	svcUID := padUID(p.ServiceClassUID)
	binary.BigEndian.PutUint16(u16[:], uint16(len(svcUID)))
	buf.Write(u16[:])
	buf.Write(svcUID)

	var related bytes.Buffer
	for _, uid := range p.RelatedGeneralSOPClassUIDs {
		u := padUID(uid)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(u)))
		related.Write(l[:])
		related.Write(u)
	}
	binary.BigEndian.PutUint16(u16[:], uint16(related.Len()))
	buf.Write(u16[:])
	buf.Write(related.Bytes())
	return nil
}

func decodeSOPClassCommonExtendedNegotiationItem(value []byte) (SOPClassCommonExtendedNegotiationItem, error) {
	r := bytes.NewReader(value)
	sopUID, err := readLen16String(r)
	if err != nil {
		return SOPClassCommonExtendedNegotiationItem{}, err
	}
	svcUID, err := readLen16String(r)
	if err != nil {
		return SOPClassCommonExtendedNegotiationItem{}, err
	}
	var relatedLen [2]byte
	if _, err := io.ReadFull(r, relatedLen[:]); err != nil {
		return SOPClassCommonExtendedNegotiationItem{}, err
	}
	relatedBytes := make([]byte, binary.BigEndian.Uint16(relatedLen[:]))
	if _, err := io.ReadFull(r, relatedBytes); err != nil {
		return SOPClassCommonExtendedNegotiationItem{}, err
	}
	rr := bytes.NewReader(relatedBytes)
	var related []string
	for rr.Len() > 0 {
		uid, err := readLen16String(rr)
		if err != nil {
			return SOPClassCommonExtendedNegotiationItem{}, err
		}
		related = append(related, uid)
	}
	return SOPClassCommonExtendedNegotiationItem{
		SOPClassUID:                sopUID,
		ServiceClassUID:            svcUID,
		RelatedGeneralSOPClassUIDs: related,
	}, nil
}

func readLen16String(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	value := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, value); err != nil {
		return "", err
	}
	return trimUID(string(value)), nil
}

// UserIdentityItem carries a requestor's identity (username, username and
// passcode, or Kerberos/SAML assertion) for optional authentication.
type UserIdentityItem struct {
	Type                      byte
	PositiveResponseRequested bool
	PrimaryField              []byte
	SecondaryField            []byte
}

func (UserIdentityItem) PduType() PduType { return TypeUserIdentityItem }

func (p UserIdentityItem) writeBody(buf *bytes.Buffer) error {
	buf.WriteByte(p.Type)
	if p.PositiveResponseRequested {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(p.PrimaryField)))
	buf.Write(l[:])
	buf.Write(p.PrimaryField)
	binary.BigEndian.PutUint16(l[:], uint16(len(p.SecondaryField)))
	buf.Write(l[:])
	buf.Write(p.SecondaryField)
	return nil
}

func readUserIdentityItem(r *bytes.Reader) (UserIdentityItem, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return UserIdentityItem{}, err
	}
	primary, err := readLen16Bytes(r)
	if err != nil {
		return UserIdentityItem{}, err
	}
	secondary, err := readLen16Bytes(r)
	if err != nil {
		return UserIdentityItem{}, err
	}
	return UserIdentityItem{
		Type:                      hdr[0],
		PositiveResponseRequested: hdr[1] != 0,
		PrimaryField:              primary,
		SecondaryField:            secondary,
	}, nil
}

// UserIdentityNegotiationItem is the acceptor's reply to a UserIdentityItem
// that requested a positive response (a Kerberos/SAML server token, or
// empty for simple username/passcode auth).
type UserIdentityNegotiationItem struct {
	ServerResponse []byte
}

func (UserIdentityNegotiationItem) PduType() PduType { return TypeUserIdentityNegotiationItem }

func (p UserIdentityNegotiationItem) writeBody(buf *bytes.Buffer) error {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(p.ServerResponse)))
	buf.Write(l[:])
	buf.Write(p.ServerResponse)
	return nil
}

func readUserIdentityNegotiationItem(r *bytes.Reader) (UserIdentityNegotiationItem, error) {
	resp, err := readLen16Bytes(r)
	if err != nil {
		return UserIdentityNegotiationItem{}, err
	}
	return UserIdentityNegotiationItem{ServerResponse: resp}, nil
}

func readLen16Bytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	value := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, err
	}
	return value, nil
}

// writeSubPdu encodes a nested item (4-byte header + body) into buf.
func writeSubPdu(buf *bytes.Buffer, p Pdu) error {
	var body bytes.Buffer
	if err := p.writeBody(&body); err != nil {
		return err
	}
	writeItemHeader(buf, p.PduType(), body.Len())
	buf.Write(body.Bytes())
	return nil
}
