package dimse

import (
	"encoding/binary"
	"fmt"

	"github.com/sobreiro-labs/dicomkit/dicom"
	"github.com/sobreiro-labs/dicomkit/types"
	"github.com/sobreiro-labs/dicomkit/vr"
)

// Command group (0000,xxxx) tags, per DICOM Part 7 Annex E.
var (
	tagAffectedSOPClassUID            = dicom.Tag{Group: 0x0000, Element: 0x0002}
	tagRequestedSOPClassUID           = dicom.Tag{Group: 0x0000, Element: 0x0003}
	tagCommandField                   = dicom.Tag{Group: 0x0000, Element: 0x0100}
	tagMessageID                      = dicom.Tag{Group: 0x0000, Element: 0x0110}
	tagMessageIDBeingRespondedTo      = dicom.Tag{Group: 0x0000, Element: 0x0120}
	tagMoveDestination                = dicom.Tag{Group: 0x0000, Element: 0x0600}
	tagPriority                       = dicom.Tag{Group: 0x0000, Element: 0x0700}
	tagCommandDataSetType             = dicom.Tag{Group: 0x0000, Element: 0x0800}
	tagStatus                         = dicom.Tag{Group: 0x0000, Element: 0x0900}
	tagAffectedSOPInstanceUID         = dicom.Tag{Group: 0x0000, Element: 0x1000}
	tagNumberOfRemainingSuboperations = dicom.Tag{Group: 0x0000, Element: 0x1020}
	tagNumberOfCompletedSuboperations = dicom.Tag{Group: 0x0000, Element: 0x1021}
	tagNumberOfFailedSuboperations    = dicom.Tag{Group: 0x0000, Element: 0x1022}
	tagNumberOfWarningSuboperations   = dicom.Tag{Group: 0x0000, Element: 0x1023}
)

// putUint16 stores v as a 2-byte little-endian US value under tag. Command
// sets are always Implicit VR Little Endian, so the VR recorded on the node
// only guides how this package itself interprets the bytes back out; the
// wire form the writer produces ignores it.
func putUint16(nm *dicom.NodeMap, tag dicom.Tag, v uint16) {
	value := make([]byte, 2)
	binary.LittleEndian.PutUint16(value, v)
	nm.Put(&dicom.Node{
		Tag: tag,
		VR:  vr.UnsignedShort,
		Leaf: &dicom.Element{
			Tag:    tag,
			VR:     vr.UnsignedShort,
			Length: 2,
			Value:  value,
		},
	})
}

// putText stores s, padded to even length with v's padding byte (NUL for
// UI, space for AE), under tag with the given VR.
func putText(nm *dicom.NodeMap, tag dicom.Tag, v vr.VR, s string) {
	raw := []byte(s)
	if len(raw)%2 == 1 {
		raw = append(raw, v.PaddingByte())
	}
	nm.Put(&dicom.Node{
		Tag: tag,
		VR:  v,
		Leaf: &dicom.Element{
			Tag:    tag,
			VR:     v,
			Length: uint32(len(raw)),
			Value:  raw,
		},
	})
}

func getUint16(nm *dicom.NodeMap, tag dicom.Tag) (uint16, bool) {
	node, ok := nm.Get(tag)
	if !ok || node.Leaf == nil || len(node.Leaf.Value) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(node.Leaf.Value[:2]), true
}

func getText(nm *dicom.NodeMap, tag dicom.Tag) string {
	node, ok := nm.Get(tag)
	if !ok || node.Leaf == nil {
		return ""
	}
	return trimCommandText(node.Leaf.Value)
}

// EncodeCommand encodes msg as a DIMSE command set under Implicit VR Little
// Endian, prefixed with its (0000,0000) group length element, using the
// dicom package's own element writer rather than hand-rolled byte slicing.
func EncodeCommand(msg *types.Message) ([]byte, error) {
	dataset := dicom.NewDataset()
	nm := dataset.Root().Elements

	if msg.AffectedSOPClassUID != "" {
		putText(nm, tagAffectedSOPClassUID, vr.UniqueIdentifier, msg.AffectedSOPClassUID)
	}
	if msg.RequestedSOPClassUID != "" {
		putText(nm, tagRequestedSOPClassUID, vr.UniqueIdentifier, msg.RequestedSOPClassUID)
	}
	putUint16(nm, tagCommandField, msg.CommandField)
	if msg.MessageID != 0 {
		putUint16(nm, tagMessageID, msg.MessageID)
	}
	if msg.MessageIDBeingRespondedTo != 0 {
		putUint16(nm, tagMessageIDBeingRespondedTo, msg.MessageIDBeingRespondedTo)
	}
	if msg.MoveDestination != "" {
		putText(nm, tagMoveDestination, vr.ApplicationEntity, msg.MoveDestination)
	}
	if msg.Priority != 0 {
		putUint16(nm, tagPriority, msg.Priority)
	}
	putUint16(nm, tagCommandDataSetType, msg.CommandDataSetType)
	if msg.Status != 0 {
		putUint16(nm, tagStatus, msg.Status)
	}
	if msg.AffectedSOPInstanceUID != "" {
		putText(nm, tagAffectedSOPInstanceUID, vr.UniqueIdentifier, msg.AffectedSOPInstanceUID)
	}
	if msg.NumberOfRemainingSuboperations != nil {
		putUint16(nm, tagNumberOfRemainingSuboperations, *msg.NumberOfRemainingSuboperations)
	}
	if msg.NumberOfCompletedSuboperations != nil {
		putUint16(nm, tagNumberOfCompletedSuboperations, *msg.NumberOfCompletedSuboperations)
	}
	if msg.NumberOfFailedSuboperations != nil {
		putUint16(nm, tagNumberOfFailedSuboperations, *msg.NumberOfFailedSuboperations)
	}
	if msg.NumberOfWarningSuboperations != nil {
		putUint16(nm, tagNumberOfWarningSuboperations, *msg.NumberOfWarningSuboperations)
	}

	body, err := dicom.EncodeDatasetWithTransferSyntax(dataset, dicom.TransferSyntaxImplicitVRLittleEndian)
	if err != nil {
		return nil, err
	}

	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(len(body)))
	header := make([]byte, 0, 12+len(body))
	header = append(header, 0x00, 0x00, 0x00, 0x00) // (0000,0000)
	header = append(header, 0x04, 0x00, 0x00, 0x00) // length 4
	header = append(header, groupLength...)
	return append(header, body...), nil
}

// DecodeCommand decodes a command set encoded under Implicit VR Little
// Endian, the transfer syntax DIMSE commands always use regardless of the
// negotiated transfer syntax for the accompanying dataset.
func DecodeCommand(data []byte) (*types.Message, error) {
	dataset, err := dicom.ParseDatasetWithTransferSyntax(data, dicom.TransferSyntaxImplicitVRLittleEndian)
	if err != nil {
		return nil, err
	}
	nm := dataset.Root().Elements
	if len(data) > 0 && nm.Len() == 0 {
		return nil, fmt.Errorf("dimse: no command element could be decoded from %d bytes", len(data))
	}

	msg := &types.Message{
		CommandDataSetType: 0x0101, // default: no dataset present
	}
	if v, ok := getUint16(nm, tagCommandField); ok {
		msg.CommandField = v
	}
	if v, ok := getUint16(nm, tagMessageID); ok {
		msg.MessageID = v
	}
	if v, ok := getUint16(nm, tagMessageIDBeingRespondedTo); ok {
		msg.MessageIDBeingRespondedTo = v
	}
	if v, ok := getUint16(nm, tagPriority); ok {
		msg.Priority = v
	}
	if v, ok := getUint16(nm, tagCommandDataSetType); ok {
		msg.CommandDataSetType = v
	}
	if v, ok := getUint16(nm, tagStatus); ok {
		msg.Status = v
	}
	msg.AffectedSOPClassUID = getText(nm, tagAffectedSOPClassUID)
	msg.RequestedSOPClassUID = getText(nm, tagRequestedSOPClassUID)
	msg.AffectedSOPInstanceUID = getText(nm, tagAffectedSOPInstanceUID)
	msg.MoveDestination = getText(nm, tagMoveDestination)

	if v, ok := getUint16(nm, tagNumberOfRemainingSuboperations); ok {
		msg.NumberOfRemainingSuboperations = &v
	}
	if v, ok := getUint16(nm, tagNumberOfCompletedSuboperations); ok {
		msg.NumberOfCompletedSuboperations = &v
	}
	if v, ok := getUint16(nm, tagNumberOfFailedSuboperations); ok {
		msg.NumberOfFailedSuboperations = &v
	}
	if v, ok := getUint16(nm, tagNumberOfWarningSuboperations); ok {
		msg.NumberOfWarningSuboperations = &v
	}

	return msg, nil
}

// AppendImplicitElement appends one Implicit VR Little Endian element (tag,
// 4-byte length, value; no VR bytes) to buf. Exported for callers building
// synthetic command-set fixtures by hand rather than through EncodeCommand.
func AppendImplicitElement(buf []byte, group, element uint16, value []byte) []byte {
	buf = append(buf, byte(group), byte(group>>8))
	buf = append(buf, byte(element), byte(element>>8))
	length := uint32(len(value))
	buf = append(buf, byte(length), byte(length>>8), byte(length>>16), byte(length>>24))
	return append(buf, value...)
}

func trimCommandText(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
