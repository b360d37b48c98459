package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeRelayState(t *testing.T) {
	assert.Equal(t, "repositoryId=bedroom", EncodeRelayState("bedroom"))
	assert.Equal(t, "", EncodeRelayState(""))

	// Values needing escaping survive the query-string encoding.
	assert.Equal(t, "repositoryId=my+repo%2F1", EncodeRelayState("my repo/1"))
}

func TestExtractRepositoryIDFromRelayState(t *testing.T) {
	tests := []struct {
		name  string
		relay string
		want  string
	}{
		{name: "round trip", relay: EncodeRelayState("bedroom"), want: "bedroom"},
		{name: "escaped round trip", relay: EncodeRelayState("my repo/1"), want: "my repo/1"},
		{name: "empty", relay: "", want: ""},
		{name: "missing key", relay: "other=value", want: ""},
		{name: "garbage", relay: "%zz%%", want: ""},
		{name: "extra keys", relay: "a=b&repositoryId=kitchen&c=d", want: "kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRepositoryIDFromRelayState(tt.relay))
		})
	}
}
