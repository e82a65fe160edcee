package protocol

import (
	"bytes"
	"testing"
)

// TestChecksum_KnownVectors tests the additive checksum with known inputs
func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{
			name:     "Empty data",
			data:     []byte{},
			expected: 0x00,
		},
		{
			name:     "Single byte",
			data:     []byte{0x55},
			expected: 0x55,
		},
		{
			name:     "Device header pair",
			data:     []byte{0x55, 0xAA},
			expected: 0xFF,
		},
		{
			name:     "Sum wraps at 8 bits",
			data:     []byte{0xFF, 0x02},
			expected: 0x01,
		},
		{
			name: "Identify command frame body",
			// 0xAA 0x55 (header) + 0x00 (cmd) + 0x03 (length)
			data:     []byte{0xAA, 0x55, 0x00, 0x03},
			expected: 0x02,
		},
		{
			name:     "All 0xFF (16 bytes)",
			data:     bytes.Repeat([]byte{0xFF}, 16),
			expected: 0xF0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Checksum(tt.data)
			if result != tt.expected {
				t.Errorf("Checksum() = 0x%02X, expected 0x%02X\nData: % X", result, tt.expected, tt.data)
			}
		})
	}
}

// TestChecksum_MatchesArithmeticSum verifies the checksum equals the low
// 8 bits of the arithmetic sum for arbitrary data
func TestChecksum_MatchesArithmeticSum(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 31)
	}

	var sum int
	for _, b := range data {
		sum += int(b)
	}

	if got := Checksum(data); got != byte(sum&0xFF) {
		t.Errorf("Checksum() = 0x%02X, expected low byte of sum 0x%02X", got, byte(sum&0xFF))
	}
}

// TestVerifyChecksum tests validation of appended checksums
func TestVerifyChecksum(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected bool
	}{
		{
			name:     "Valid identify frame",
			frame:    []byte{0xAA, 0x55, 0x00, 0x03, 0x02},
			expected: true,
		},
		{
			name:     "Corrupted checksum byte",
			frame:    []byte{0xAA, 0x55, 0x00, 0x03, 0x03},
			expected: false,
		},
		{
			name:     "Corrupted body byte",
			frame:    []byte{0xAA, 0x54, 0x00, 0x03, 0x02},
			expected: false,
		},
		{
			name:     "Too short",
			frame:    []byte{0x02},
			expected: false,
		},
		{
			name:     "Empty",
			frame:    nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyChecksum(tt.frame); got != tt.expected {
				t.Errorf("VerifyChecksum() = %v, expected %v\nFrame: % X", got, tt.expected, tt.frame)
			}
		})
	}
}

// TestAppendChecksum_RoundTrip verifies build-then-validate always succeeds
func TestAppendChecksum_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Nil slice", nil},
		{"Empty slice", []byte{}},
		{"Single byte", []byte{0x42}},
		{"Max payload", make([]byte, MaxPayloadSize)},
		{"High bytes", bytes.Repeat([]byte{0xFE}, 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			framed := AppendChecksum(tt.data)
			if len(framed) != len(tt.data)+1 {
				t.Fatalf("AppendChecksum() length = %d, expected %d", len(framed), len(tt.data)+1)
			}
			if !VerifyChecksum(framed) {
				t.Errorf("VerifyChecksum(AppendChecksum(data)) = false\nData: % X", tt.data)
			}
		})
	}
}
