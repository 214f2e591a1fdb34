package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    UpdatePeriod
		wantErr bool
	}{
		{name: "zero", text: "0", want: 0},
		{name: "typical", text: "120000", want: UpdatePeriod(120_000 * time.Millisecond)},
		{name: "negative rejected", text: "-123", wantErr: true},
		{name: "garbage rejected", text: "not-a-number", wantErr: true},
		{name: "whitespace rejected", text: " 1000", wantErr: true},
		{name: "over 32 bits rejected", text: "9999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffective(t *testing.T) {
	tests := []struct {
		name    string
		freqMS  string
		bypass  bool
		setFreq bool
		want    time.Duration
	}{
		{name: "unset yields default floor", setFreq: false, want: floor},
		{name: "above floor no bypass", setFreq: true, freqMS: "120000", want: 120_000 * time.Millisecond},
		{name: "below floor no bypass clamps", setFreq: true, freqMS: "1", want: floor},
		{name: "below floor with bypass wins", setFreq: true, freqMS: "5000", bypass: true, want: 5_000 * time.Millisecond},
		{name: "garbage no bypass falls back to floor", setFreq: true, freqMS: "garbage", want: floor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setFreq {
				t.Setenv(frequencyEnvVar, tt.freqMS)
			}
			if tt.bypass {
				t.Setenv(bypassEnvVar, "1")
			}

			assert.Equal(t, tt.want, Effective())
		})
	}
}
