package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionNumberRoundTrip(t *testing.T) {
	cases := []string{"1.2.3", "20.0.0", "0.0.0"}

	for _, c := range cases {
		v, err := ParseVersionNumber(c)
		require.NoError(t, err)
		assert.Equal(t, c, v.String())
	}
}

func TestVersionNumberCompare(t *testing.T) {
	v1 := MustParseVersionNumber("5.10.0")
	v2 := MustParseVersionNumber("5.9.9")
	assert.True(t, v1.IsSameOrGreater(v2))
	assert.False(t, v2.IsSameOrGreater(v1))
	assert.True(t, v1.IsSameOrGreater(v1))
}

func TestPlatformIsSameOrGreaterFlavorMismatch(t *testing.T) {
	info := Info{OS: OSLinux, Flavor: FlavorDebian, Version: MustParseVersionNumber("10.0.0")}

	assert.True(t, info.IsSameOrGreater(FlavorDebian, "9"))
	assert.False(t, info.IsSameOrGreater(FlavorUbuntu, "9"), "different flavor never compares same-or-greater")
}

func TestHostAddressPrefersFQDN(t *testing.T) {
	h := New("db1", "db1.internal", "10.0.0.5")
	assert.Equal(t, "db1.internal", h.Address())

	h2 := New("db2", "", "10.0.0.6")
	assert.Equal(t, "10.0.0.6", h2.Address())
}

func TestHostSettings(t *testing.T) {
	h := New("db1", "", "10.0.0.5")
	assert.False(t, h.HasSetting(UseSudo))
	h.Settings[UseSudo] = true
	assert.True(t, h.HasSetting(UseSudo))
}
