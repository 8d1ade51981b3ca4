// Package export writes the marker dataset and the neighborhood report, plus
// optional GeoJSON and shapefile renditions of the markers.
package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// WriteMarkers writes the buildings as a JSON object keyed by name.
func WriteMarkers(path string, buildings map[string]model.EnrichedBuilding) error {
	if buildings == nil {
		buildings = map[string]model.EnrichedBuilding{}
	}
	return WriteJSON(path, buildings)
}

// WriteReport writes the neighborhood monthly statistics as a JSON array.
func WriteReport(path string, report []model.PeriodStat) error {
	if report == nil {
		report = []model.PeriodStat{}
	}
	return WriteJSON(path, report)
}

// WriteJSON encodes v with two-space indentation, leaving non-ASCII text
// unescaped, and atomically replaces path.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "export: encode %s", path)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteFileAtomic writes data to a temp file beside path, syncs it and
// renames it over path. Readers never see a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "export: create temp for %s", path)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return eris.Wrapf(err, "export: write %s", tmp.Name())
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrapf(err, "export: sync %s", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", tmp.Name())
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return eris.Wrapf(err, "export: chmod %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "export: rename to %s", path)
	}
	return nil
}

// sortedNames returns the map keys in ascending order.
func sortedNames(buildings map[string]model.EnrichedBuilding) []string {
	names := make([]string, 0, len(buildings))
	for name := range buildings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
