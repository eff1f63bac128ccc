package pep440_test

import (
	"testing"

	"piplock/pep440"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecifierMatches(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{"==1.26.0", "1.26.0", true},
		{"==1.26.0", "1.26.1", false},
		{"==1.0", "1.0.0", true},
		{"==5.1.1", "5.1.1+ubuntu1", true},
		{"==5.1.1+ubuntu1", "5.1.1+ubuntu1", true},
		{"==5.1.1+ubuntu1", "5.1.1", false},
		{"!=5.1.1", "5.1.1+ubuntu1", false},
		{"==2.1.*", "2.1.5", true},
		{"==2.1.*", "2.2.0", false},
		{"!=2.1.*", "2.2.0", true},
		{"!=2.1.*", "2.1.0", false},
		{">=3.6", "3.6", true},
		{">=3.6", "3.5.9", false},
		{"<4.0", "3.9.9", true},
		{"<4.0", "4.0", false},
		{">2.0", "2.0.1", true},
		{"<=5.1.1", "5.1.1", true},
		{"~=2.2", "2.9", true},
		{"~=2.2", "3.0", false},
		{"~=1.4.5", "1.4.9", true},
		{"~=1.4.5", "1.5.0", false},
		{"~=1.4.5", "1.4.4", false},
		{"===1.0", "1.0", true},
		{"===1.0", "1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec+" vs "+tt.version, func(t *testing.T) {
			spec, err := pep440.ParseSpecifier(tt.spec)
			require.NoError(t, err)
			got := spec.Matches(pep440.MustParseVersion(tt.version))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpecifierInvalid(t *testing.T) {
	for _, in := range []string{"1.0", ">=", ">=1.0.*", "~~1.0"} {
		t.Run(in, func(t *testing.T) {
			_, err := pep440.ParseSpecifier(in)
			assert.Error(t, err)
		})
	}
}

func TestSpecifierSet(t *testing.T) {
	set, err := pep440.ParseSpecifierSet(">=3.2, <4.0, !=3.2.1")
	require.NoError(t, err)
	require.Len(t, set.Specifiers, 3)

	assert.True(t, set.Matches(pep440.MustParseVersion("3.2.18")))
	assert.False(t, set.Matches(pep440.MustParseVersion("3.2.1")))
	assert.False(t, set.Matches(pep440.MustParseVersion("4.0")))
	assert.False(t, set.Matches(pep440.MustParseVersion("3.1")))

	assert.Equal(t, ">=3.2,<4.0,!=3.2.1", set.String())
}

func TestSpecifierSetEmptyMatchesAll(t *testing.T) {
	set, err := pep440.ParseSpecifierSet("")
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.True(t, set.Matches(pep440.MustParseVersion("0.0.1")))
}

func TestSpecifierSetIntersect(t *testing.T) {
	a, err := pep440.ParseSpecifierSet(">=1.0")
	require.NoError(t, err)
	b, err := pep440.ParseSpecifierSet("<2.0")
	require.NoError(t, err)

	both := a.Intersect(b)
	assert.True(t, both.Matches(pep440.MustParseVersion("1.5")))
	assert.False(t, both.Matches(pep440.MustParseVersion("2.0")))
	assert.False(t, both.Matches(pep440.MustParseVersion("0.9")))
}

func TestAllowsPrereleases(t *testing.T) {
	set, err := pep440.ParseSpecifierSet(">=1.0rc1")
	require.NoError(t, err)
	assert.True(t, set.AllowsPrereleases())

	set, err = pep440.ParseSpecifierSet(">=1.0")
	require.NoError(t, err)
	assert.False(t, set.AllowsPrereleases())
}

func TestExactPin(t *testing.T) {
	set, err := pep440.ParseSpecifierSet("==5.1.1")
	require.NoError(t, err)
	pin, ok := set.ExactPin()
	require.True(t, ok)
	assert.Equal(t, "5.1.1", pin)

	set, err = pep440.ParseSpecifierSet(">=5.1.1")
	require.NoError(t, err)
	_, ok = set.ExactPin()
	assert.False(t, ok)
}
