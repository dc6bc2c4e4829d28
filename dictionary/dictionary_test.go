package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sobreiro-labs/dicomkit/types"
	"github.com/sobreiro-labs/dicomkit/vr"
)

func TestLookupTagKnown(t *testing.T) {
	entry, ok := Default.LookupTag(0x0010, 0x0010)
	assert.True(t, ok)
	assert.Equal(t, vr.PersonName, entry.VR)
	assert.Equal(t, "PatientName", entry.Name)
}

func TestLookupTagPrivateGroupIsUnknown(t *testing.T) {
	_, ok := Default.LookupTag(0x0009, 0x0001)
	assert.False(t, ok)
}

func TestLookupTagGroupLengthFallback(t *testing.T) {
	entry, ok := Default.LookupTag(0x0008, 0x0000)
	assert.True(t, ok)
	assert.Equal(t, vr.UnsignedLong, entry.VR)
}

func TestLookupTagUnknownPublic(t *testing.T) {
	_, ok := Default.LookupTag(0x0008, 0x9999)
	assert.False(t, ok)
}

func TestStructuralTagConstants(t *testing.T) {
	assert.Equal(t, Tag{0xFFFE, 0xE000}, TagItem)
	assert.Equal(t, Tag{0xFFFE, 0xE00D}, TagItemDelimitationItem)
	assert.Equal(t, Tag{0xFFFE, 0xE0DD}, TagSequenceDelimitationItem)
}

func TestLookupTS(t *testing.T) {
	info := Default.LookupTS(types.ExplicitVRBigEndian)
	assert.Equal(t, "Explicit VR Big Endian", info.Name)
	assert.True(t, info.BigEndian)
	assert.True(t, info.ExplicitVR)

	info = Default.LookupTS(types.ImplicitVRLittleEndian)
	assert.False(t, info.ExplicitVR)
	assert.False(t, info.BigEndian)

	info = Default.LookupTS(types.DeflatedExplicitVRLittleEndian)
	assert.True(t, info.Deflated)
}

func TestLookupUID(t *testing.T) {
	name, ok := Default.LookupUID(types.ExplicitVRLittleEndian)
	assert.True(t, ok)
	assert.Equal(t, "Explicit VR Little Endian", name)

	_, ok = Default.LookupUID("1.2.3.4.5.unknown")
	assert.False(t, ok)
}
