package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailedErrorWrapsTagAndOffset(t *testing.T) {
	base := Detail(ErrValueLengthMismatch, "(0008,0018)", 132)
	require.Error(t, base)

	var de *DetailedError
	require.True(t, errors.As(base, &de))
	assert.Equal(t, "(0008,0018)", de.TagPath)
	assert.EqualValues(t, 132, de.Offset)
	assert.True(t, errors.Is(base, ErrValueLengthMismatch))
	assert.Contains(t, base.Error(), "(0008,0018)")
	assert.Contains(t, base.Error(), "132")
}

func TestDetailedErrorWithoutTagPath(t *testing.T) {
	err := Detail(ErrTruncated, "", 4)
	assert.NotContains(t, err.Error(), " at ")
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestDetailNilIsNil(t *testing.T) {
	assert.Nil(t, Detail(nil, "(0008,0018)", 0))
}

func TestNewProtocolViolation(t *testing.T) {
	err := NewProtocolViolation(ViolationUnexpectedPDU, "P-DATA-TF before association established")
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.Contains(t, err.Error(), "unexpected PDU")
	assert.Contains(t, err.Error(), "P-DATA-TF")
}

func TestAssocRJReasonText(t *testing.T) {
	tests := []struct {
		source, reason byte
		want           string
	}{
		{1, 1, "No reason given."},
		{1, 2, "Application Context Name not supported."},
		{1, 3, "Calling AE Title not recognized."},
		{1, 7, "Called AE Title not recognized."},
		{2, 2, "Protocol version not supported."},
		{3, 1, "Temporary congestion."},
		{3, 2, "Local limit exceeded."},
		{9, 9, "Unknown reason."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AssocRJReasonText(tt.source, tt.reason))
	}
}

func TestAbortReasonText(t *testing.T) {
	tests := []struct {
		reason byte
		want   string
	}{
		{0, "Not-specified"},
		{1, "Unrecognized PDU"},
		{2, "Unexpected PDU"},
		{3, "Unexpected session-service primitive"},
		{6, "Invalid PDU parameter value"},
		{99, "Unrecognized reason."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AbortReasonText(tt.reason))
	}
}
