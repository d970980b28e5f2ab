package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"string hours", `"24h"`, 24 * time.Hour, false},
		{"string seconds", `"90s"`, 90 * time.Second, false},
		{"nanoseconds number", `1000000000`, time.Second, false},
		{"bad string", `"soon"`, 0, true},
		{"bad type", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, `"24h0m0s"`, string(b))
}
