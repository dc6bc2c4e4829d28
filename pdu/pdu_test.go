package pdu

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/sobreiro-labs/dicomkit/errors"
)

// roundTrip encodes p, decodes the result, and returns the decoded value.
func roundTrip(t *testing.T, p Pdu) Pdu {
	t.Helper()
	encoded, err := Encode(p)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	return decoded
}

// TestRoundTrip_AllVariants exercises Decode(Encode(p)) == p for every one
// of the 22 Pdu implementations: the six association/release/abort PDUs,
// PresentationDataItem, and the fifteen nested sub-items.
func TestRoundTrip_AllVariants(t *testing.T) {
	maxOpsWindow := AsyncOperationsWindowItem{MaxOperationsInvoked: 1, MaxOperationsPerformed: 3}
	implVersion := ImplementationVersionNameItem{Name: "DICOMKIT_1_0"}
	userIdentity := UserIdentityItem{
		Type:                      2,
		PositiveResponseRequested: true,
		PrimaryField:              []byte("scu"),
		SecondaryField:            []byte("secret"),
	}
	userIdentityReply := UserIdentityNegotiationItem{ServerResponse: []byte("server-token")}

	cases := []struct {
		name string
		pdu  Pdu
	}{
		{"AssocRQ", AssocRQ{
			ProtocolVersion:    1,
			CalledAE:           "SCP_AE",
			CallingAE:          "SCU_AE",
			ApplicationContext: ApplicationContextItem{Name: "1.2.840.10008.3.1.1.1"},
			PresentationContexts: []AssocRQPresentationContext{
				{
					ID:             1,
					AbstractSyntax: AbstractSyntaxItem{Name: "1.2.840.10008.1.1"},
					TransferSyntaxes: []TransferSyntaxItem{
						{Name: "1.2.840.10008.1.2"},
						{Name: "1.2.840.10008.1.2.1"},
					},
				},
			},
			UserInfo: UserInformationItem{
				MaxLength:              MaxLengthItem{MaxLength: 16384},
				ImplementationClassUID: ImplementationClassUIDItem{UID: implementationClassUID},
				AsyncOperationsWindow:  &maxOpsWindow,
				RoleSelections: []RoleSelectionItem{
					{SOPClassUID: "1.2.840.10008.5.1.4.1.1.7", SCURole: 1, SCPRole: 0},
				},
				ImplementationVersionName: &implVersion,
				UserIdentity:              &userIdentity,
			},
		}},
		{"AssocAC", AssocAC{
			ProtocolVersion:    1,
			CalledAE:           "SCP_AE",
			CallingAE:          "SCU_AE",
			ApplicationContext: ApplicationContextItem{Name: "1.2.840.10008.3.1.1.1"},
			PresentationContexts: []AssocACPresentationContext{
				{ID: 1, Result: presentationResultAcceptance, TransferSyntax: TransferSyntaxItem{Name: "1.2.840.10008.1.2"}},
			},
			UserInfo: UserInformationItem{
				MaxLength:                    MaxLengthItem{MaxLength: 16384},
				ImplementationClassUID:       ImplementationClassUIDItem{UID: implementationClassUID},
				UserIdentityNegotiationReply: &userIdentityReply,
			},
		}},
		{"AssocRJ", AssocRJ{Result: 1, Source: 2, Reason: 2}},
		{"ReleaseRQ", ReleaseRQ{}},
		{"ReleaseRP", ReleaseRP{}},
		{"Abort", Abort{Source: 2, Reason: 3}},
		{"PresentationDataItem", PresentationDataItem{Values: []PresentationDataValue{
			{ContextID: 1, IsCommand: true, IsLast: true, Data: []byte{0x01, 0x02, 0x03}},
		}}},
		{"ApplicationContextItem", ApplicationContextItem{Name: "1.2.840.10008.3.1.1.1"}},
		{"AbstractSyntaxItem", AbstractSyntaxItem{Name: "1.2.840.10008.1.1"}},
		{"TransferSyntaxItem", TransferSyntaxItem{Name: "1.2.840.10008.1.2"}},
		{"AssocRQPresentationContext", AssocRQPresentationContext{
			ID:             3,
			AbstractSyntax: AbstractSyntaxItem{Name: "1.2.840.10008.1.1"},
			TransferSyntaxes: []TransferSyntaxItem{
				{Name: "1.2.840.10008.1.2"},
			},
		}},
		{"AssocACPresentationContext", AssocACPresentationContext{
			ID: 3, Result: presentationResultAcceptance, TransferSyntax: TransferSyntaxItem{Name: "1.2.840.10008.1.2"},
		}},
		{"UserInformationItem", UserInformationItem{
			MaxLength:              MaxLengthItem{MaxLength: 16384},
			ImplementationClassUID: ImplementationClassUIDItem{UID: implementationClassUID},
		}},
		{"MaxLengthItem", MaxLengthItem{MaxLength: 16384}},
		{"ImplementationClassUIDItem", ImplementationClassUIDItem{UID: implementationClassUID}},
		{"AsyncOperationsWindowItem", maxOpsWindow},
		{"RoleSelectionItem", RoleSelectionItem{SOPClassUID: "1.2.840.10008.5.1.4.1.1.7", SCURole: 1, SCPRole: 1}},
		{"ImplementationVersionNameItem", implVersion},
		{"SOPClassExtendedNegotiationItem", SOPClassExtendedNegotiationItem{
			SOPClassUID:         "1.2.840.10008.5.1.4.1.1.7",
			ServiceClassAppInfo: []byte{0xde, 0xad, 0xbe, 0xef},
		}},
		{"SOPClassCommonExtendedNegotiationItem", SOPClassCommonExtendedNegotiationItem{
			SOPClassUID:                "1.2.840.10008.5.1.4.1.1.7",
			ServiceClassUID:            "1.2.840.10008.4.2",
			RelatedGeneralSOPClassUIDs: []string{"1.2.840.10008.5.1.4.1.1.1", "1.2.840.10008.5.1.4.1.1.2"},
		}},
		{"UserIdentityItem", userIdentity},
		{"UserIdentityNegotiationItem", userIdentityReply},
	}

	// 6 association/release/abort PDUs + PresentationDataItem + 15 sub-items.
	require.Len(t, cases, 22)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoded := roundTrip(t, tc.pdu)
			if diff := cmp.Diff(tc.pdu, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.pdu.PduType(), decoded.PduType())
		})
	}
}

func TestDecode_InvalidPduType(t *testing.T) {
	frame := []byte{0xEE, 0x00, 0x00, 0x00, 0x00, 0x00} // unrecognized type, zero-length body
	_, err := Decode(bytes.NewReader(frame))
	require.Error(t, err)

	var invalid InvalidPduType
	require.True(t, stderrors.As(err, &invalid))
	assert.Equal(t, byte(0xEE), byte(invalid))
	assert.True(t, stderrors.Is(err, derrors.ErrInvalidPduType))
	assert.Contains(t, invalid.Error(), "0xee")
}

func TestDecode_InvalidSubItemType(t *testing.T) {
	// A presentation-context-item-rq whose nested sub-item type is bogus.
	var body bytes.Buffer
	body.WriteByte(0x01) // context ID
	body.Write([]byte{0, 0, 0})
	writeItemHeader(&body, PduType(0xAA), 2)
	body.Write([]byte{0x00, 0x00})

	var frame bytes.Buffer
	frame.WriteByte(byte(TypeAssocRQPresentationContext))
	frame.WriteByte(0)
	var lenBuf [4]byte
	lenBuf[3] = byte(body.Len())
	frame.Write(lenBuf[:])
	frame.Write(body.Bytes())

	_, err := Decode(bytes.NewReader(frame.Bytes()))
	require.Error(t, err)
	var invalid InvalidPduType
	require.True(t, stderrors.As(err, &invalid))
	assert.Equal(t, byte(0xAA), byte(invalid))
}

func TestPduType_String(t *testing.T) {
	assert.Equal(t, "A-ASSOCIATE-RQ", TypeAssocRQ.String())
	assert.Equal(t, "P-DATA-TF", TypePresentationDataItem.String())
	assert.Contains(t, PduType(0xFE).String(), "unknown")
}

func TestAssocRJ_ReasonText(t *testing.T) {
	rj := AssocRJ{Result: 1, Source: 1, Reason: 3}
	assert.Equal(t, "Calling AE Title not recognized.", rj.ReasonText())
}

func TestAbort_ReasonText(t *testing.T) {
	a := Abort{Source: 2, Reason: 2}
	assert.Equal(t, "Unexpected PDU", a.ReasonText())
}
