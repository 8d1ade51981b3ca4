package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	names := New(Overrides{
		Aliases: map[string]string{"한남 더힐": "한남더힐"},
		Presets: map[string]string{"나인원한남": "서울특별시 용산구 한남대로 91"},
	})

	tests := []struct {
		name string
		raw  string
		want Resolution
	}{
		{"alias", "한남 더힐", Resolution{SearchName: "한남더힐"}},
		{"preset", "나인원한남", Resolution{SearchName: "나인원한남", KnownAddress: "서울특별시 용산구 한남대로 91", HasKnownAddress: true}},
		{"plain", "  유엔빌리지 ", Resolution{SearchName: "유엔빌리지"}},
		{"decomposed key", "\u1112\u1161\u11ab남 더힐", Resolution{SearchName: "한남더힐"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names.Resolve(tt.raw))
		})
	}
}

func TestResolve_AliasAndPresetIndependent(t *testing.T) {
	names := New(Overrides{
		Aliases: map[string]string{"A": "A apartments"},
		Presets: map[string]string{"A": "road 1"},
	})
	got := names.Resolve("A")
	assert.Equal(t, "A apartments", got.SearchName)
	assert.True(t, got.HasKnownAddress)
	assert.Equal(t, "road 1", got.KnownAddress)
}

func TestNew_DropsEmptyEntries(t *testing.T) {
	names := New(Overrides{
		Aliases: map[string]string{"": "x", "y": " "},
		Presets: map[string]string{"z": "addr"},
	})
	aliases, presets := names.Len()
	assert.Equal(t, 0, aliases)
	assert.Equal(t, 1, presets)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`aliases:
  한남 더힐: 한남더힐
presets:
  나인원한남: 서울특별시 용산구 한남대로 91
`), 0o644))

	o, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "한남더힐", o.Aliases["한남 더힐"])
	assert.Equal(t, "서울특별시 용산구 한남대로 91", o.Presets["나인원한남"])
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, o.Aliases)
	assert.Empty(t, o.Presets)

	o, err = LoadOverrides("")
	require.NoError(t, err)
	assert.Empty(t, o.Aliases)
}

func TestLoadOverrides_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases: [unterminated"), 0o644))

	_, err := LoadOverrides(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse overrides")
}

func TestMerge_FileWins(t *testing.T) {
	merged := Merge(
		Overrides{Aliases: map[string]string{"A": "from-config", "B": "b"}},
		Overrides{Aliases: map[string]string{"A": "from-file"}, Presets: map[string]string{"C": "c"}},
	)
	assert.Equal(t, map[string]string{"A": "from-file", "B": "b"}, merged.Aliases)
	assert.Equal(t, map[string]string{"C": "c"}, merged.Presets)
}
