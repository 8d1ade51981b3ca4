// Package resolve maps raw building names to search names and, for a few
// buildings the search API cannot find by name, to a known road address.
package resolve

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Overrides is the on-disk shape of the overrides file.
type Overrides struct {
	Aliases map[string]string `yaml:"aliases"`
	Presets map[string]string `yaml:"presets"`
}

// Resolution is the outcome of looking up one raw name.
type Resolution struct {
	SearchName      string
	KnownAddress    string
	HasKnownAddress bool
}

// Names holds the alias and preset tables. It is read-only after construction
// and safe for concurrent use.
type Names struct {
	aliases map[string]string
	presets map[string]string
}

// New builds Names from the given tables, normalizing keys. Entries with an
// empty key or value are ignored.
func New(o Overrides) *Names {
	return &Names{
		aliases: normalizeTable(o.Aliases),
		presets: normalizeTable(o.Presets),
	}
}

// Resolve returns the search name for rawName and its preset address, if any.
func (n *Names) Resolve(rawName string) Resolution {
	key := Normalize(rawName)
	res := Resolution{SearchName: key}
	if alias, ok := n.aliases[key]; ok {
		res.SearchName = alias
	}
	if addr, ok := n.presets[key]; ok {
		res.KnownAddress = addr
		res.HasKnownAddress = true
	}
	return res
}

// Len reports the number of aliases and presets.
func (n *Names) Len() (aliases, presets int) {
	return len(n.aliases), len(n.presets)
}

// Normalize trims and NFC-composes a name.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// LoadOverrides reads an overrides YAML file. A missing file yields empty
// tables.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("resolve: no overrides file", zap.String("path", path))
		return o, nil
	}
	if err != nil {
		return o, eris.Wrapf(err, "resolve: read overrides %s", path)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, eris.Wrapf(err, "resolve: parse overrides %s", path)
	}
	return o, nil
}

// Merge layers file over base; entries in file win.
func Merge(base, file Overrides) Overrides {
	return Overrides{
		Aliases: mergeTable(base.Aliases, file.Aliases),
		Presets: mergeTable(base.Presets, file.Presets),
	}
}

func mergeTable(base, top map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(top))
	for k, v := range normalizeTable(base) {
		out[k] = v
	}
	for k, v := range normalizeTable(top) {
		out[k] = v
	}
	return out
}

func normalizeTable(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = Normalize(k), Normalize(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
