package dimse

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sobreiro-labs/dicomkit/dicom"
	"github.com/sobreiro-labs/dicomkit/interfaces"
	"github.com/sobreiro-labs/dicomkit/metrics"
	"github.com/sobreiro-labs/dicomkit/types"
)

// Command types
const (
	CStoreRQ  = 0x0001
	CStoreRSP = 0x8001
	CGetRQ    = 0x0010
	CGetRSP   = 0x8010
	CFindRQ   = 0x0020
	CFindRSP  = 0x8020
	CMoveRQ   = 0x0021
	CMoveRSP  = 0x8021
	CEchoRQ   = 0x0030
	CEchoRSP  = 0x8030
	CCancelRQ = 0x0FFF
)

// Status codes
const (
	StatusSuccess = 0x0000
	StatusPending = 0xFF00
	StatusFailure = 0xC000
)

// commandFieldNames maps the Command Field values this service recognizes to
// their mnemonic names, for metrics labels and logging.
var commandFieldNames = map[uint16]string{
	CStoreRQ:  "C-STORE-RQ",
	CStoreRSP: "C-STORE-RSP",
	CGetRQ:    "C-GET-RQ",
	CGetRSP:   "C-GET-RSP",
	CFindRQ:   "C-FIND-RQ",
	CFindRSP:  "C-FIND-RSP",
	CMoveRQ:   "C-MOVE-RQ",
	CMoveRSP:  "C-MOVE-RSP",
	CEchoRQ:   "C-ECHO-RQ",
	CEchoRSP:  "C-ECHO-RSP",
	CCancelRQ: "C-CANCEL-RQ",
}

// commandFieldName renders a Command Field value as its mnemonic name,
// falling back to the raw hex value for anything outside the known set.
func commandFieldName(field uint16) string {
	if name, ok := commandFieldNames[field]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", field)
}

// PDULayer interface for sending responses
type PDULayer interface {
	SendDIMSEResponse(presContextID byte, commandData []byte) error
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error
	GetTransferSyntax(presContextID byte) (string, error)
}

// Service manages DIMSE operations and message routing
type Service struct {
	handler     interfaces.ServiceHandler
	commandData []byte
	datasetData []byte
	currentMsg  *types.Message
	logger      *logrus.Entry
	transferUID string
	contextID   byte
}

// responseHandler implements ResponseSender for streaming responses
type responseHandler struct {
	service               *Service
	presContextID         byte
	pduLayer              PDULayer
	defaultTransferSyntax string
}

// SendResponse implements ResponseSender interface
func (r *responseHandler) SendResponse(msg *types.Message, dataset *dicom.Dataset, transferSyntaxUID string) error {
	tsUID := transferSyntaxUID
	if tsUID == "" {
		tsUID = r.defaultTransferSyntax
	}

	var datasetBytes []byte
	var err error
	if dataset != nil {
		datasetBytes, err = dicom.EncodeDatasetWithTransferSyntax(dataset, tsUID)
		if err != nil {
			return fmt.Errorf("failed to encode dataset with transfer syntax %s: %w", tsUID, err)
		}
	}

	// Propagate transfer syntax to message for downstream consumers
	msg.TransferSyntaxUID = tsUID

	return r.service.sendDIMSEResponse(msg, datasetBytes, r.presContextID, r.pduLayer)
}

// cGetResponder implements CGetResponder for C-GET operations
type cGetResponder struct {
	responseHandler
	messageIDCounter uint16
}

// SendCStore implements CGetResponder interface - sends C-STORE sub-operation on same association
func (c *cGetResponder) SendCStore(sopClassUID, sopInstanceUID string, data []byte) error {
	c.messageIDCounter++

	// Build C-STORE-RQ command
	command := &types.Message{
		CommandField:           CStoreRQ,
		MessageID:              c.messageIDCounter,
		Priority:               0x0002, // Low priority (a zero, Medium, Priority is not encoded)
		AffectedSOPClassUID:    sopClassUID,
		AffectedSOPInstanceUID: sopInstanceUID,
		CommandDataSetType:     0x0000, // Dataset present
	}

	commandData, err := EncodeCommand(command)
	if err != nil {
		return fmt.Errorf("failed to encode C-STORE sub-operation command: %w", err)
	}

	// Send C-STORE-RQ with dataset on the same association
	if err := c.pduLayer.SendDIMSEResponseWithDataset(c.presContextID, commandData, data); err != nil {
		return fmt.Errorf("failed to send C-STORE sub-operation: %w", err)
	}

	// Note: In a full implementation, we should wait for C-STORE-RSP
	// For now, we'll assume success
	return nil
}

// NewService creates a new DIMSE service with a handler
func NewService(handler interfaces.ServiceHandler, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		handler: handler,
		logger:  logger,
	}
}

// HandleDIMSEMessage processes DIMSE messages and routes to appropriate service
func (d *Service) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error {
	// Create context for this message handling
	ctx := context.Background()

	d.logger.WithFields(logrus.Fields{
		"context_id":     presContextID,
		"control_header": fmt.Sprintf("0x%02x", msgCtrlHeader),
	}).Debug("processing DIMSE message")
	tsUID, err := pduLayer.GetTransferSyntax(presContextID)
	if err != nil {
		d.logger.WithError(err).WithField("context_id", presContextID).
			Warn("failed to retrieve transfer syntax for presentation context")
	}
	if tsUID != "" {
		d.transferUID = tsUID
	}
	d.contextID = presContextID

	// Check message control header
	// 0x01 = command, more fragments
	// 0x02 = dataset, last fragment
	// 0x03 = command, last fragment
	// 0x00 = dataset, more fragments

	isCommand := (msgCtrlHeader & 0x01) != 0
	isLastFragment := (msgCtrlHeader & 0x02) != 0

	if isCommand {
		// This is command data
		d.logger.WithField("size_bytes", len(data)).Debug("received command data")
		if isLastFragment {
			// Final fragment of a (possibly multi-fragment) command
			d.commandData = append(d.commandData, data...)
			msg, err := DecodeCommand(d.commandData)
			if err != nil {
				return fmt.Errorf("failed to parse DIMSE command: %v", err)
			}
			d.currentMsg = msg

			// If CommandDataSetType indicates no dataset, process immediately
			if msg.CommandDataSetType == 0x0101 {
				return d.processCompleteMessage(ctx, presContextID, pduLayer)
			}
		} else {
			// Multi-fragment command (accumulate)
			d.commandData = append(d.commandData, data...)
		}
	} else {
		// This is dataset data
		d.logger.WithField("size_bytes", len(data)).Debug("received dataset data")
		if isLastFragment {
			// Complete dataset received
			d.datasetData = append(d.datasetData, data...)
			return d.processCompleteMessage(ctx, presContextID, pduLayer)
		} else {
			// Multi-fragment dataset (accumulate)
			d.datasetData = append(d.datasetData, data...)
		}
	}

	return nil
}

// processCompleteMessage processes a complete DIMSE message (command + optional dataset)
func (d *Service) processCompleteMessage(ctx context.Context, presContextID byte, pduLayer PDULayer) error {
	if d.currentMsg == nil {
		return fmt.Errorf("no current message to process")
	}

	d.logger.WithContext(ctx).WithFields(logrus.Fields{
		"command_field": fmt.Sprintf("0x%04x", d.currentMsg.CommandField),
		"message_id":    d.currentMsg.MessageID,
		"dataset_size":  len(d.datasetData),
	}).Info("processing complete DIMSE message")
	metrics.DIMSECommandsDispatched.WithLabelValues(commandFieldName(d.currentMsg.CommandField)).Inc()

	tsUID := d.transferUID
	if tsUID == "" {
		if negotiatedTS, err := pduLayer.GetTransferSyntax(presContextID); err == nil {
			tsUID = negotiatedTS
		} else {
			d.logger.WithContext(ctx).WithError(err).WithField("context_id", presContextID).
				Warn("unable to determine transfer syntax for presentation context")
		}
	}
	d.currentMsg.TransferSyntaxUID = tsUID

	var parsedDataset *dicom.Dataset
	if len(d.datasetData) > 0 {
		var err error
		parsedDataset, err = dicom.ParseDatasetWithTransferSyntax(d.datasetData, tsUID)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).WithField("transfer_syntax", tsUID).
				Warn("failed to parse dataset with negotiated transfer syntax")
		} else {
			d.logger.WithContext(ctx).WithField("transfer_syntax", tsUID).
				Debug("parsed dataset using transfer syntax")
		}
	}

	meta := interfaces.MessageContext{
		PresentationContextID: presContextID,
		TransferSyntaxUID:     tsUID,
		Dataset:               parsedDataset,
	}

	defer d.resetState()

	if streamingHandler, ok := d.handler.(interfaces.StreamingServiceHandler); ok {
		d.logger.WithContext(ctx).Debug("using streaming handler for multi-response operation")

		responder := d.buildResponder(presContextID, pduLayer, tsUID)
		return streamingHandler.HandleDIMSEStreaming(ctx, d.currentMsg, d.datasetData, meta, responder)
	}

	responseMsg, responseDataset, err := d.handler.HandleDIMSE(ctx, d.currentMsg, d.datasetData, meta)
	if err != nil {
		return fmt.Errorf("service handler failed: %w", err)
	}

	responseTS := responseMsg.TransferSyntaxUID
	if responseTS == "" {
		responseTS = tsUID
	}

	var encodedDataset []byte
	if responseDataset != nil {
		var encodeErr error
		encodedDataset, encodeErr = dicom.EncodeDatasetWithTransferSyntax(responseDataset, responseTS)
		if encodeErr != nil {
			return fmt.Errorf("failed to encode response dataset using transfer syntax %s: %w", responseTS, encodeErr)
		}
	}

	responseMsg.TransferSyntaxUID = responseTS
	return d.sendDIMSEResponse(responseMsg, encodedDataset, presContextID, pduLayer)
}

func (d *Service) buildResponder(presContextID byte, pduLayer PDULayer, defaultTS string) interfaces.ResponseSender {
	base := responseHandler{
		service:               d,
		presContextID:         presContextID,
		pduLayer:              pduLayer,
		defaultTransferSyntax: defaultTS,
	}

	if d.currentMsg != nil && d.currentMsg.CommandField == CGetRQ {
		return &cGetResponder{responseHandler: base}
	}

	return &base
}

func (d *Service) resetState() {
	d.commandData = nil
	d.datasetData = nil
	d.currentMsg = nil
	d.transferUID = ""
	d.contextID = 0
}

// sendDIMSEResponse sends a DIMSE response
func (d *Service) sendDIMSEResponse(msg *types.Message, data []byte, presContextID byte, pduLayer PDULayer) error {
	commandData, err := EncodeCommand(msg)
	if err != nil {
		return fmt.Errorf("failed to encode DIMSE response command: %w", err)
	}
	return pduLayer.SendDIMSEResponseWithDataset(presContextID, commandData, data)
}
