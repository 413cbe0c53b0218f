package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "+79001234567", want: "+79001234567"},
		{name: "separators", in: "+7 (900) 123-45", want: "+790012345"},
		{name: "surrounding space", in: "  +12025550143 ", want: "+12025550143"},
		{name: "missing plus", in: "79001234567", wantErr: true},
		{name: "too long", in: "+7900123456789012", wantErr: true},
		{name: "no digits", in: "+-- --", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
