package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindTransport, "transport"},
		{KindProtocolDecode, "protocol_decode"},
		{KindNegotiation, "negotiation"},
		{KindTransfer, "transfer"},
		{KindUnknown, "unknown"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := errors.New("socket closed")
	err := fmt.Errorf("sending offer: %w", Transport("send", base))

	assert.Equal(t, KindTransport, KindOf(err))
	assert.True(t, Is(err, KindTransport))
	assert.False(t, Is(err, KindTransfer))
	assert.ErrorIs(t, err, base)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "send", fe.Op)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindUnknown))
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Action
	}{
		{"decode is dropped", ProtocolDecode("decode", errors.New("bad json")), ActionDrop},
		{"transport fails session", Transport("send", errors.New("closed")), ActionFail},
		{"negotiation fails session", Negotiation("answer", errors.New("bad sdp")), ActionFail},
		{"transfer is surfaced", Transfer("download", "file missing"), ActionSurface},
		{"unclassified is surfaced", errors.New("other"), ActionSurface},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ActionFor(tt.err))
			assert.False(t, IsRetryable(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "transfer error: download: file missing", Transfer("download", "file missing").Error())
	assert.Equal(t, "transport error: closed", New(KindTransport, "", errors.New("closed")).Error())
}
