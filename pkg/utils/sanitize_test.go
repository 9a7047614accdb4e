package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "ESP32-01", SanitizeIdentifier("  <b>ESP32-01</b>\n"))
	assert.Equal(t, "Budi", SanitizeText(" <i>Budi</i> "))
}

func TestTrimBarcodeKeepsPayload(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  A<B>C1\r\n", "A<B>C1"},
		{"]C1<GS>0104012345", "]C1<GS>0104012345"},
		{"01\x1d17250101", "01\x1d17250101"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrimBarcode(tt.in))
	}
}
