package pdu

import (
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	derrors "github.com/sobreiro-labs/dicomkit/errors"
	"github.com/sobreiro-labs/dicomkit/metrics"
	"github.com/sobreiro-labs/dicomkit/types"
)

const (
	defaultMaxPDULength       = 16384
	implementationClassUID    = "1.2.3.4.5.6.7.8.9"
	implementationVersionName = "DICOMKIT_1_0"
)

// Backward-compatible byte aliases for the top-level PDU type bytes, kept
// for callers that compare against a plain byte rather than a PduType.
const (
	TypeAssociateRQ = byte(TypeAssocRQ)
	TypeAssociateAC = byte(TypeAssocAC)
	TypeAssociateRJ = byte(TypeAssocRJ)
	TypePDataTF     = byte(TypePresentationDataItem)
)

// associationState is the acceptor-side association lifecycle, per DICOM
// Part 8 Section 9.2. Layer always acts as the acceptor, so it never
// occupies stateAwaitingAC (that belongs to the association requestor
// between sending A-ASSOCIATE-RQ and receiving the reply); the state is
// named here so the enum matches the full protocol state table.
type associationState int

const (
	stateIdle associationState = iota
	stateAwaitingAC
	stateEstablished
	stateAwaitingRelease
	stateReleased
	stateAborted
)

func (s associationState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateAwaitingAC:
		return "AwaitingAC"
	case stateEstablished:
		return "Established"
	case stateAwaitingRelease:
		return "AwaitingRelease"
	case stateReleased:
		return "Released"
	case stateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Layer handles the DICOM Upper Layer Protocol for one accepted connection.
type Layer struct {
	conn           net.Conn
	associationCtx *AssociationContext
	dimseHandler   DIMSEHandler
	serverAETitle  string
	logger         *logrus.Entry
	assocState     associationState
}

// AssociationContext holds the negotiated parameters of one association.
type AssociationContext struct {
	CalledAETitle    string
	CallingAETitle   string
	MaxPDULength     uint32
	PresentationCtxs map[byte]*PresentationContext
}

// PresentationContext is one negotiated presentation context: an accepted
// or rejected abstract syntax, plus its chosen transfer syntax when accepted.
type PresentationContext struct {
	ID             byte
	Result         byte
	AbstractSyntax string
	TransferSyntax string
}

const (
	presentationResultAcceptance           byte = 0x00
	presentationResultRejectAbstractSyntax byte = 0x03
	presentationResultRejectTransferSyntax byte = 0x04
)

var supportedAbstractSyntaxes = map[string]bool{
	types.VerificationSOPClass:                              true, // Verification SOP Class (C-ECHO)
	types.PatientRootQueryRetrieveInformationModelFind:      true, // Patient Root Q/R - FIND
	types.StudyRootQueryRetrieveInformationModelFind:        true, // Study Root Q/R - FIND
	types.PatientStudyOnlyQueryRetrieveInformationModelFind: true, // Patient/Study Only Q/R - FIND
	types.PatientRootQueryRetrieveInformationModelMove:      true, // Patient Root Q/R - MOVE
	types.StudyRootQueryRetrieveInformationModelMove:        true, // Study Root Q/R - MOVE
	types.PatientStudyOnlyQueryRetrieveInformationModelMove: true, // Patient/Study Only Q/R - MOVE
	types.PatientRootQueryRetrieveInformationModelGet:       true, // Patient Root Q/R - GET
	types.StudyRootQueryRetrieveInformationModelGet:         true, // Study Root Q/R - GET
	types.PatientStudyOnlyQueryRetrieveInformationModelGet:  true, // Patient/Study Only Q/R - GET
}

var supportedTransferSyntaxes = map[string]bool{
	types.ImplicitVRLittleEndian: true,
	types.ExplicitVRLittleEndian: true,
}

func supportsAbstractSyntax(uid string) bool {
	if supportedAbstractSyntaxes[uid] {
		return true
	}
	return types.IsStorageSOPClass(uid)
}

func supportsTransferSyntax(uid string) bool {
	return supportedTransferSyntaxes[uid]
}

// DIMSEHandler routes a decoded DIMSE fragment to the service layer.
type DIMSEHandler interface {
	HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer *Layer) error
}

// NewLayer creates a new PDU layer handler bound to one accepted connection.
func NewLayer(conn net.Conn, dimseHandler DIMSEHandler, serverAETitle string, logger *logrus.Entry) *Layer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Layer{
		conn:          conn,
		dimseHandler:  dimseHandler,
		serverAETitle: serverAETitle,
		logger:        logger,
		assocState:    stateIdle,
	}
}

// HandleConnection manages the complete DICOM connection lifecycle: the
// association phase, then the P-DATA-TF/release/abort loop.
func (p *Layer) HandleConnection() error {
	defer p.conn.Close()
	p.logger.WithField("remote_addr", p.conn.RemoteAddr()).Info("new DICOM connection")

	if err := p.handleAssociationPhase(); err != nil {
		return fmt.Errorf("association failed: %w", err)
	}

	for {
		frame, err := Decode(p.conn)
		if err != nil {
			if err == io.EOF {
				p.logger.WithField("remote_addr", p.conn.RemoteAddr()).Info("connection closed by client")
			} else {
				p.logger.WithError(err).WithField("remote_addr", p.conn.RemoteAddr()).Warn("error reading PDU")
			}
			break
		}

		if err := p.handlePDU(frame); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("error handling PDU: %w", err)
		}
	}

	return nil
}

// handlePDU routes one decoded top-level PDU to its handler.
func (p *Layer) handlePDU(frame Pdu) error {
	p.logger.WithField("type", frame.PduType()).Debug("received PDU")
	metrics.PDUsReceived.WithLabelValues(frame.PduType().String()).Inc()

	switch v := frame.(type) {
	case PresentationDataItem:
		return p.handlePDataTF(v)
	case ReleaseRQ:
		return p.handleReleaseRequest()
	case ReleaseRP:
		p.logger.Debug("received A-RELEASE-RP")
		p.setState(stateReleased)
		return io.EOF
	case Abort:
		p.logger.WithFields(logrus.Fields{"source": v.Source, "reason": v.ReasonText()}).Info("received A-ABORT")
		metrics.AssociationsAborted.WithLabelValues("peer").Inc()
		p.setState(stateAborted)
		return io.EOF
	default:
		p.logger.WithField("type", frame.PduType()).Warn("unhandled PDU type")
		return nil
	}
}

// setState records an association state transition.
func (p *Layer) setState(s associationState) {
	p.logger.WithFields(logrus.Fields{"from": p.assocState, "to": s}).Debug("association state transition")
	p.assocState = s
}

// sendAbort writes an A-ABORT PDU to the peer.
func (p *Layer) sendAbort(source, reason byte) error {
	encoded, err := Encode(Abort{Source: source, Reason: reason})
	if err != nil {
		return err
	}
	metrics.PDUsSent.WithLabelValues(TypeAbort.String()).Inc()
	metrics.AssociationsAborted.WithLabelValues("local").Inc()
	_, err = p.conn.Write(encoded)
	return err
}

// handleAssociationPhase reads the opening A-ASSOCIATE-RQ and negotiates
// the association.
func (p *Layer) handleAssociationPhase() error {
	frame, err := Decode(p.conn)
	if err != nil {
		return fmt.Errorf("failed to read association request: %w", err)
	}

	rq, ok := frame.(AssocRQ)
	if !ok {
		_ = p.sendAbort(2, 2)
		p.setState(stateAborted)
		return derrors.NewProtocolViolation(derrors.ViolationUnexpectedPDU,
			fmt.Sprintf("expected A-ASSOCIATE-RQ, got %s", frame.PduType()))
	}

	return p.handleAssociateRequest(rq)
}

// handleAssociateRequest negotiates presentation contexts from rq and
// replies with A-ASSOCIATE-AC, or A-ASSOCIATE-RJ if nothing was acceptable.
func (p *Layer) handleAssociateRequest(rq AssocRQ) error {
	correlationID := uuid.NewString()
	p.logger = p.logger.WithField("association_id", correlationID)
	p.logger.WithFields(logrus.Fields{
		"calling_ae": rq.CallingAE,
		"called_ae":  rq.CalledAE,
	}).Info("processing A-ASSOCIATE-RQ")

	p.associationCtx = &AssociationContext{
		CalledAETitle:    rq.CalledAE,
		CallingAETitle:   rq.CallingAE,
		MaxPDULength:     defaultMaxPDULength,
		PresentationCtxs: make(map[byte]*PresentationContext),
	}
	if rq.UserInfo.MaxLength.MaxLength > 0 {
		p.associationCtx.MaxPDULength = rq.UserInfo.MaxLength.MaxLength
	}

	ac := AssocAC{
		ProtocolVersion:    1,
		CalledAE:           p.associationCtx.CalledAETitle,
		CallingAE:          p.associationCtx.CallingAETitle,
		ApplicationContext: ApplicationContextItem{Name: types.ApplicationContextUID},
		UserInfo: UserInformationItem{
			MaxLength:                 MaxLengthItem{MaxLength: defaultMaxPDULength},
			ImplementationClassUID:    ImplementationClassUIDItem{UID: implementationClassUID},
			ImplementationVersionName: &ImplementationVersionNameItem{Name: implementationVersionName},
		},
	}

	var ids []byte
	for _, rqCtx := range rq.PresentationContexts {
		ids = append(ids, rqCtx.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accepted := 0
	for _, id := range ids {
		var rqCtx AssocRQPresentationContext
		for _, c := range rq.PresentationContexts {
			if c.ID == id {
				rqCtx = c
				break
			}
		}

		acCtx, internal := negotiatePresentationContext(rqCtx)
		p.associationCtx.PresentationCtxs[id] = internal

		// WORKAROUND: some DICOM implementations (e.g., DCMTK/Orthanc)
		// incorrectly reject A-ASSOCIATE-AC PDUs that include rejected
		// presentation contexts, even though PS3.8 Section 9.3.3.3 requires
		// echoing every context from the RQ. Omit rejected contexts instead.
		if internal.Result != presentationResultAcceptance {
			p.logger.WithFields(logrus.Fields{"context_id": id, "result": internal.Result}).
				Debug("skipping rejected context (compatibility workaround)")
			continue
		}

		ac.PresentationContexts = append(ac.PresentationContexts, acCtx)
		accepted++
	}

	if accepted == 0 {
		rj := AssocRJ{Result: 1, Source: 2, Reason: 1}
		encoded, err := Encode(rj)
		if err == nil {
			metrics.PDUsSent.WithLabelValues(TypeAssocRJ.String()).Inc()
			_, _ = p.conn.Write(encoded)
		}
		metrics.AssociationsRejected.WithLabelValues(rj.ReasonText()).Inc()
		p.setState(stateAborted)
		return fmt.Errorf("no acceptable presentation contexts: %s", rj.ReasonText())
	}

	encoded, err := Encode(ac)
	if err != nil {
		return fmt.Errorf("failed to encode A-ASSOCIATE-AC: %w", err)
	}
	if _, err := p.conn.Write(encoded); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-AC: %w", err)
	}
	metrics.PDUsSent.WithLabelValues(TypeAssocAC.String()).Inc()

	p.logger.WithFields(logrus.Fields{
		"proposed":       len(rq.PresentationContexts),
		"accepted":       accepted,
		"max_pdu_length": p.associationCtx.MaxPDULength,
	}).Info("sent A-ASSOCIATE-AC")
	metrics.AssociationsEstablished.Inc()
	p.setState(stateEstablished)
	return nil
}

// negotiatePresentationContext picks the first transfer syntax this layer
// supports among rqCtx's proposals, if its abstract syntax is supported.
func negotiatePresentationContext(rqCtx AssocRQPresentationContext) (AssocACPresentationContext, *PresentationContext) {
	abstractSyntax := rqCtx.AbstractSyntax.Name
	result := presentationResultRejectAbstractSyntax
	selected := ""

	if supportsAbstractSyntax(abstractSyntax) {
		result = presentationResultRejectTransferSyntax
		for _, ts := range rqCtx.TransferSyntaxes {
			if supportsTransferSyntax(ts.Name) {
				selected = ts.Name
				result = presentationResultAcceptance
				break
			}
		}
	}

	acCtx := AssocACPresentationContext{ID: rqCtx.ID, Result: result}
	if result == presentationResultAcceptance {
		acCtx.TransferSyntax = TransferSyntaxItem{Name: selected}
	}

	return acCtx, &PresentationContext{
		ID:             rqCtx.ID,
		Result:         result,
		AbstractSyntax: abstractSyntax,
		TransferSyntax: selected,
	}
}

// handlePDataTF forwards every PDV in a P-DATA-TF to the DIMSE handler.
// Receiving one outside an established association is a protocol
// violation: the association is aborted rather than processed.
func (p *Layer) handlePDataTF(pdi PresentationDataItem) error {
	if p.assocState != stateEstablished {
		p.logger.WithField("state", p.assocState).Warn("P-DATA-TF received outside established association")
		_ = p.sendAbort(2, 2) // service-provider, unexpected-PDU
		p.setState(stateAborted)
		return derrors.NewProtocolViolation(derrors.ViolationUnexpectedPDU, "P-DATA-TF outside Established state")
	}

	for _, v := range pdi.Values {
		var msgCtrlHeader byte
		if v.IsCommand {
			msgCtrlHeader |= 0x01
		}
		if v.IsLast {
			msgCtrlHeader |= 0x02
		}
		p.logger.WithFields(logrus.Fields{
			"presentation_context_id": v.ContextID,
			"message_control_header":  fmt.Sprintf("0x%02x", msgCtrlHeader),
		}).Debug("processing DIMSE fragment")
		if err := p.dimseHandler.HandleDIMSEMessage(v.ContextID, msgCtrlHeader, v.Data, p); err != nil {
			return err
		}
	}
	return nil
}

// handleReleaseRequest processes A-RELEASE-RQ and replies with A-RELEASE-RP.
func (p *Layer) handleReleaseRequest() error {
	p.logger.Debug("processing A-RELEASE-RQ")
	p.setState(stateAwaitingRelease)

	encoded, err := Encode(ReleaseRP{})
	if err != nil {
		return fmt.Errorf("failed to encode A-RELEASE-RP: %w", err)
	}
	if _, err := p.conn.Write(encoded); err != nil {
		return fmt.Errorf("failed to send A-RELEASE-RP: %w", err)
	}
	metrics.PDUsSent.WithLabelValues(TypeReleaseRP.String()).Inc()

	p.logger.Debug("sent A-RELEASE-RP")
	p.setState(stateReleased)
	return io.EOF
}

// SendDIMSEResponse sends a DIMSE response with no dataset via P-DATA-TF.
func (p *Layer) SendDIMSEResponse(presContextID byte, commandData []byte) error {
	return p.SendDIMSEResponseWithDataset(presContextID, commandData, nil)
}

// SendDIMSEResponseWithDataset sends a DIMSE response, splitting the command
// and (if present) the dataset into PDVs no larger than the association's
// negotiated max PDU length, per Part 8 Section 9.3.1. Commands and dataset
// bytes are never mixed in a single PDV.
func (p *Layer) SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error {
	if p.assocState != stateEstablished {
		return derrors.NewProtocolViolation(derrors.ViolationUnexpectedPrimitive, "P-DATA request outside Established state")
	}

	if err := p.sendFragmented(presContextID, commandData, true); err != nil {
		return fmt.Errorf("failed to send command PDV(s): %w", err)
	}
	if len(datasetData) > 0 {
		if err := p.sendFragmented(presContextID, datasetData, false); err != nil {
			return fmt.Errorf("failed to send dataset PDV(s): %w", err)
		}
	}
	return nil
}

// sendFragmented writes data as one or more PDVs, each carried in its own
// P-DATA-TF PDU, chunked so every PDU stays within MaxPDULength.
func (p *Layer) sendFragmented(presContextID byte, data []byte, isCommand bool) error {
	maxPDULength := p.associationCtx.MaxPDULength
	maxPDVData := int(maxPDULength) - 6 - 6
	if maxPDVData <= 0 {
		maxPDVData = len(data)
	}
	if maxPDVData <= 0 {
		maxPDVData = 1
	}

	offset := 0
	for {
		chunkSize := len(data) - offset
		last := true
		if chunkSize > maxPDVData {
			chunkSize = maxPDVData
			last = false
		}

		pdi := PresentationDataItem{Values: []PresentationDataValue{{
			ContextID: presContextID,
			IsCommand: isCommand,
			IsLast:    last,
			Data:      data[offset : offset+chunkSize],
		}}}
		encoded, err := Encode(pdi)
		if err != nil {
			return err
		}
		if _, err := p.conn.Write(encoded); err != nil {
			return fmt.Errorf("failed to write P-DATA-TF: %w", err)
		}
		metrics.PDUsSent.WithLabelValues(TypePresentationDataItem.String()).Inc()

		offset += chunkSize
		if last {
			return nil
		}
	}
}

// GetTransferSyntax returns the negotiated transfer syntax for the given
// presentation context.
func (p *Layer) GetTransferSyntax(presContextID byte) (string, error) {
	if p.associationCtx == nil {
		return "", fmt.Errorf("association context not initialized")
	}

	ctx, ok := p.associationCtx.PresentationCtxs[presContextID]
	if !ok {
		return "", fmt.Errorf("presentation context %d not found", presContextID)
	}
	if ctx.TransferSyntax == "" {
		return "", fmt.Errorf("no transfer syntax negotiated for presentation context %d", presContextID)
	}
	return ctx.TransferSyntax, nil
}
