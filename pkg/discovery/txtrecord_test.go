package discovery_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/discovery"
)

func TestDecodeScannerTXT(t *testing.T) {
	txt := discovery.StringsToTXTRecords([]string{
		"txtvers=1",
		"ty=HP LaserJet MFP M28w",
		"rs=/eSCL/",
		"UUID=564e4333-3230-3944-3130-3230b0e4d5d1",
		"cs=color,Grayscale, binary",
		"is=platen,adf",
		"duplex=T",
		"pdl=application/pdf,image/jpeg",
		"adminurl=http://printer.local./",
		"representation=http://printer.local./icon.png",
	})

	info, err := discovery.DecodeScannerTXT(txt)
	require.NoError(t, err)

	assert.Equal(t, "HP LaserJet MFP M28w", info.Model)
	assert.Equal(t, "eSCL", info.ResourcePath)
	assert.Equal(t, "564e4333-3230-3944-3130-3230b0e4d5d1", info.UUID)
	assert.Equal(t, []string{"color", "grayscale", "binary"}, info.ColorSpaces)
	assert.Equal(t, []string{"platen", "adf"}, info.Sources)
	assert.True(t, info.Duplex)
	assert.Equal(t, []string{"application/pdf", "image/jpeg"}, info.Formats)
	assert.Equal(t, "http://printer.local./", info.AdminURL)
	assert.Equal(t, "http://printer.local./icon.png", info.IconURL)
}

func TestDecodeScannerTXTDefaults(t *testing.T) {
	info, err := discovery.DecodeScannerTXT(discovery.TXTRecordMap{"TY": "Canon"})
	require.NoError(t, err)

	assert.Equal(t, "Canon", info.Model)
	assert.Equal(t, discovery.DefaultResourcePath, info.ResourcePath)
	assert.False(t, info.Duplex)
	assert.Nil(t, info.Sources)
}

func TestDecodeScannerTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  discovery.TXTRecordMap
		want error
	}{
		{"missing model", discovery.TXTRecordMap{"rs": "eSCL"}, discovery.ErrMissingRequired},
		{"empty model", discovery.TXTRecordMap{"ty": ""}, discovery.ErrMissingRequired},
		{"bad duplex", discovery.TXTRecordMap{"ty": "x", "duplex": "maybe"}, discovery.ErrInvalidTXTRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := discovery.DecodeScannerTXT(tt.txt)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeScannerTXT() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScannerTXTRoundTrip(t *testing.T) {
	info := &discovery.ScannerInfo{
		Model:        "Brother ADS-1700W",
		ResourcePath: "eSCL",
		UUID:         "e3248000-80ce-11db-8000-30055c773bcf",
		ColorSpaces:  []string{"color", "grayscale"},
		Sources:      []string{"adf"},
		Duplex:       true,
	}

	strs := discovery.TXTRecordsToStrings(discovery.EncodeScannerTXT(info))
	got, err := discovery.DecodeScannerTXT(discovery.StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := discovery.StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	assert.Equal(t, discovery.TXTRecordMap{"a": "1", "flag": "", "b": "x=y"}, txt)
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, discovery.ValidateInstanceName("Office Scanner"))
	assert.ErrorIs(t, discovery.ValidateInstanceName(""), discovery.ErrInstanceNameTooLong)

	long := make([]byte, discovery.MaxInstanceNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, discovery.ValidateInstanceName(string(long)), discovery.ErrInstanceNameTooLong)
}
