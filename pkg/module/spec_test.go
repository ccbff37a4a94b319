package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecRoundTrip(t *testing.T) {
	cases := []Spec{
		NewSpec("kernel", "0.1"),
		NewSpec("docker-image-updates", "0.1"),
		NewSpec("systemd-service-restart", "0.1"),
	}

	for _, want := range cases {
		got, err := ParseSpec(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseSpecRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "noversion", "-0.1", "kernel-"} {
		_, err := ParseSpec(s)
		assert.Error(t, err, s)
	}
}
