package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"local trunk format", "0771234567", "256771234567"},
		{"international format", "256771234567", "256771234567"},
		{"plus prefix", "+256771234567", "256771234567"},
		{"missing country code", "771234567", "256771234567"},
		{"spaces and dashes", "0771-234 567", "256771234567"},
		{"parentheses", "(0)771234567", "256771234567"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"0771234567", "+256 78 123 4567", "761234567", "256772000001"}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid 77 prefix", "256771234567", nil},
		{"valid 78 prefix", "256781234567", nil},
		{"valid 76 prefix", "256761234567", nil},
		{"airtel prefix rejected", "256701234567", ErrUnknownCarrier},
		{"landline prefix rejected", "256414123456", ErrUnknownCarrier},
		{"too short", "25677123456", ErrMalformed},
		{"too long", "2567712345678", ErrMalformed},
		{"empty", "", ErrMalformed},
		{"non-digit", "25677123456a", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	got, err := NormalizeAndValidate("0771234567")
	assert.NoError(t, err)
	assert.Equal(t, "256771234567", got)

	_, err = NormalizeAndValidate("0701234567")
	assert.ErrorIs(t, err, ErrUnknownCarrier)

	_, err = NormalizeAndValidate("not a number")
	assert.ErrorIs(t, err, ErrMalformed)
}
