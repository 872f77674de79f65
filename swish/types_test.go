package swish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2019-01-02T14:29:51.092+0000", time.Date(2019, 1, 2, 14, 29, 51, 92e6, time.UTC)},
		{"2019-01-02T14:29:51+0100", time.Date(2019, 1, 2, 13, 29, 51, 0, time.UTC)},
		{"2019-01-02T14:29:51.5Z", time.Date(2019, 1, 2, 14, 29, 51, 5e8, time.UTC)},
		{"2019-01-02T14:29:51+01:00", time.Date(2019, 1, 2, 13, 29, 51, 0, time.UTC)},
		{"2019-01-02T14:29:51", time.Date(2019, 1, 2, 14, 29, 51, 0, time.UTC)},
		{" 2019-01-02 ", time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("02/01/2019")
	assert.Error(t, err)
}

func TestStatusFinal(t *testing.T) {
	for _, s := range []Status{StatusPaid, StatusDeclined, StatusError, StatusCancelled} {
		assert.True(t, s.Final(), s)
	}
	for _, s := range []Status{StatusCreated, StatusDebited, ""} {
		assert.False(t, s.Final(), s)
	}
}

func TestMergeOverrides(t *testing.T) {
	base := map[string]any{"id": "A", "status": "CREATED"}
	got := merge(base, map[string]any{"status": "PAID", "amount": 1.0})

	assert.Equal(t, map[string]any{"id": "A", "status": "PAID", "amount": 1.0}, got)
	assert.Equal(t, "CREATED", base["status"], "inputs are not modified")
}

func TestFirstString(t *testing.T) {
	fields := map[string]any{"id": "", "instructionUUID": nil, "payoutInstructionUUID": 42.0}
	assert.Equal(t, "42", firstString(fields, "id", "instructionUUID", "payoutInstructionUUID"))
	assert.Empty(t, firstString(fields, "missing"))
	assert.Empty(t, firstString(map[string]any{"id": true}, "id"))
}
