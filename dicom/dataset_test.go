package dicom

import (
	"encoding/binary"
	"testing"
)

func TestNewDataset(t *testing.T) {
	ds := NewDataset()
	if ds == nil {
		t.Fatal("NewDataset returned nil")
	}
	if ds.Root().Elements.Len() != 0 {
		t.Errorf("Expected empty dataset, got %d elements", ds.Root().Elements.Len())
	}
}

func TestDataset_AddElement(t *testing.T) {
	ds := NewDataset()

	tag := Tag{0x0010, 0x0010}
	ds.AddElement(tag, VR_PN, "DOE^JOHN")

	node, exists := ds.GetElement(tag)
	if !exists {
		t.Fatal("Element not found after adding")
	}
	if node.Tag != tag {
		t.Errorf("Tag mismatch: expected %v, got %v", tag, node.Tag)
	}
	if node.VR.String() != VR_PN {
		t.Errorf("VR mismatch: expected %s, got %s", VR_PN, node.VR)
	}
	if got := ds.GetString(tag); got != "DOE^JOHN" {
		t.Errorf("Value mismatch: expected DOE^JOHN, got %v", got)
	}
}

func TestDataset_GetElement(t *testing.T) {
	ds := NewDataset()

	existingTag := Tag{0x0010, 0x0020}
	ds.AddElement(existingTag, VR_LO, "12345")

	if _, exists := ds.GetElement(existingTag); !exists {
		t.Error("Expected to find existing element")
	}

	nonExistingTag := Tag{0xFFFF, 0xFFFF}
	if node, exists := ds.GetElement(nonExistingTag); exists || node != nil {
		t.Error("Expected not to find non-existing element")
	}
}

func TestDataset_GetString(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(Tag{0x0010, 0x0010}, VR_PN, "DOE^JOHN")
	ds.AddElement(Tag{0x0010, 0x0020}, VR_LO, "  12345  ")

	if got := ds.GetString(Tag{0x0010, 0x0010}); got != "DOE^JOHN" {
		t.Errorf("Expected DOE^JOHN, got %q", got)
	}
	if got := ds.GetString(Tag{0x0010, 0x0020}); got != "12345" {
		t.Errorf("Expected trimmed 12345, got %q", got)
	}
	if got := ds.GetString(Tag{0xFFFF, 0xFFFF}); got != "" {
		t.Errorf("Expected empty string for missing tag, got %q", got)
	}
}

func TestDataset_GetStrings(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(Tag{0x0008, 0x0060}, VR_CS, "CT")
	ds.AddElement(Tag{0x0008, 0x0008}, VR_CS, "ORIGINAL\\PRIMARY\\AXIAL")

	if got := ds.GetStrings(Tag{0x0008, 0x0060}); len(got) != 1 || got[0] != "CT" {
		t.Errorf("expected [CT], got %v", got)
	}
	want := []string{"ORIGINAL", "PRIMARY", "AXIAL"}
	got := ds.GetStrings(Tag{0x0008, 0x0008})
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
	if got := ds.GetStrings(Tag{0xFFFF, 0xFFFF}); got != nil {
		t.Errorf("expected nil for missing tag, got %v", got)
	}
}

func TestParseDataset(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedLen int
		checks      func(t *testing.T, ds *Dataset)
	}{
		{
			name:        "Empty dataset",
			data:        []byte{},
			expectedLen: 0,
		},
		{
			name: "Single element",
			data: func() []byte {
				data := make([]byte, 8)
				binary.LittleEndian.PutUint16(data[0:2], 0x0010)
				binary.LittleEndian.PutUint16(data[2:4], 0x0010)
				data[4], data[5] = 'P', 'N'
				binary.LittleEndian.PutUint16(data[6:8], 8)
				return append(data, []byte("DOE^JOHN")...)
			}(),
			expectedLen: 1,
			checks: func(t *testing.T, ds *Dataset) {
				if got := ds.GetString(Tag{0x0010, 0x0010}); got != "DOE^JOHN" {
					t.Errorf("Expected DOE^JOHN, got %s", got)
				}
			},
		},
		{
			name: "Element with odd length padded with space",
			data: func() []byte {
				data := make([]byte, 8)
				binary.LittleEndian.PutUint16(data[0:2], 0x0010)
				binary.LittleEndian.PutUint16(data[2:4], 0x0010)
				data[4], data[5] = 'P', 'N'
				binary.LittleEndian.PutUint16(data[6:8], 8)
				return append(data, []byte("JOHNSON ")...)
			}(),
			expectedLen: 1,
			checks: func(t *testing.T, ds *Dataset) {
				if got := ds.GetString(Tag{0x0010, 0x0010}); got != "JOHNSON" {
					t.Errorf("Expected JOHNSON, got %s", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseDataset(tt.data)
			if err != nil {
				t.Fatalf("ParseDataset failed: %v", err)
			}
			if got := ds.Root().Elements.Len(); got != tt.expectedLen {
				t.Errorf("Expected %d elements, got %d", tt.expectedLen, got)
			}
			if tt.checks != nil {
				tt.checks(t, ds)
			}
		})
	}
}

func TestDataset_EncodeDataset(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(Tag{0x0010, 0x0010}, VR_PN, "DOE^JOHN")

	data := ds.EncodeDataset()
	if len(data) < 8 {
		t.Fatalf("Data too short: %d bytes", len(data))
	}

	group := binary.LittleEndian.Uint16(data[0:2])
	element := binary.LittleEndian.Uint16(data[2:4])
	if group != 0x0010 || element != 0x0010 {
		t.Errorf("Expected tag (0010,0010), got (%04x,%04x)", group, element)
	}
	if vr := string(data[4:6]); vr != "PN" {
		t.Errorf("Expected VR PN, got %s", vr)
	}
	length := binary.LittleEndian.Uint16(data[6:8])
	if length != 8 {
		t.Errorf("Expected length 8, got %d", length)
	}
	if value := string(data[8 : 8+length]); value != "DOE^JOHN" {
		t.Errorf("Expected DOE^JOHN, got %s", value)
	}
}

func TestDataset_EncodeDatasetOrdersByTag(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(Tag{0x0020, 0x000D}, VR_UI, "1.2.3")
	ds.AddElement(Tag{0x0010, 0x0020}, VR_LO, "12345")
	ds.AddElement(Tag{0x0010, 0x0010}, VR_PN, "DOE^JOHN")

	data := ds.EncodeDataset()
	group := binary.LittleEndian.Uint16(data[0:2])
	element := binary.LittleEndian.Uint16(data[2:4])
	if group != 0x0010 || element != 0x0010 {
		t.Errorf("First tag should be (0010,0010), got (%04x,%04x)", group, element)
	}
}

func TestDataset_RoundTrip(t *testing.T) {
	original := NewDataset()
	original.AddElement(Tag{0x0010, 0x0010}, VR_PN, "DOE^JOHN")
	original.AddElement(Tag{0x0010, 0x0020}, VR_LO, "12345")
	original.AddElement(Tag{0x0008, 0x0060}, VR_CS, "CT")
	original.AddElement(Tag{0x0020, 0x000D}, VR_UI, "1.2.3.4.5")

	encoded := original.EncodeDataset()
	parsed, err := ParseDataset(encoded)
	if err != nil {
		t.Fatalf("Failed to parse encoded dataset: %v", err)
	}

	tests := []struct {
		tag      Tag
		expected string
	}{
		{Tag{0x0010, 0x0010}, "DOE^JOHN"},
		{Tag{0x0010, 0x0020}, "12345"},
		{Tag{0x0008, 0x0060}, "CT"},
		{Tag{0x0020, 0x000D}, "1.2.3.4.5"},
	}
	for _, tt := range tests {
		if got := parsed.GetString(tt.tag); got != tt.expected {
			t.Errorf("Tag %v: expected %q, got %q", tt.tag, tt.expected, got)
		}
	}
}

func TestParseDatasetWithTransferSyntaxDefaultsToExplicitVRLittleEndian(t *testing.T) {
	ds, err := ParseDatasetWithTransferSyntax(nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Root().TransferSyntaxUID != TransferSyntaxExplicitVRLittleEndian {
		t.Errorf("expected default transfer syntax, got %s", ds.Root().TransferSyntaxUID)
	}
}
