package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"3s"`, want: 3 * time.Second},
		{name: "compound string", in: `"1m30s"`, want: 90 * time.Second},
		{name: "nanoseconds", in: `1000000`, want: time.Millisecond},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
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

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(b))
}

func TestClock_NilFallsBackToTimeNow(t *testing.T) {
	var c Clock
	before := time.Now()
	got := c.Now()
	assert.False(t, got.Before(before))

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c = func() time.Time { return fixed }
	assert.Equal(t, fixed, c.Now())
}

func TestUnixMilliRoundTrip(t *testing.T) {
	assert.Nil(t, UnixMilliPtr(nil))
	assert.Nil(t, FromUnixMilliPtr(nil))

	ts := time.UnixMilli(1700000000123).UTC()
	back := FromUnixMilliPtr(UnixMilliPtr(&ts))
	require.NotNil(t, back)
	assert.True(t, ts.Equal(*back))
}
