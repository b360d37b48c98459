package authtoken

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "network", err: NetworkFailure(errors.New("dial tcp: refused")), want: KindNetwork},
		{name: "rejected", err: Rejected("bad password"), want: KindRejected},
		{name: "encoding", err: EncodingFailure(errors.New("bad xml")), want: KindEncoding},
		{name: "missing token", err: MissingToken("no credential"), want: KindMissingToken},
		{name: "disabled", err: Disabled("SAML"), want: KindDisabled},
		{name: "wrapped", err: fmt.Errorf("login: %w", Rejected("nope")), want: KindRejected},
		{name: "plain error", err: errors.New("boom"), want: Kind("")},
		{name: "nil", err: nil, want: Kind("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRejectedDefaultMessage(t *testing.T) {
	var e *Error
	assert.True(t, errors.As(Rejected(""), &e))
	assert.Equal(t, "authentication rejected", e.Message)

	assert.True(t, errors.As(Rejected("server said no"), &e))
	assert.Equal(t, "server said no", e.Message)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NetworkFailure(cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "network")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(Disabled("Google"), KindDisabled))
	assert.False(t, IsKind(Disabled("Google"), KindRejected))
	assert.False(t, IsKind(nil, KindRejected))
}
