package export

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/hannam-lab/markers-cli/internal/model"
)

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// dBase field names are limited to 10 characters.
var shapeFields = []shp.Field{
	shp.StringField("NAME", 120),
	shp.StringField("ADDRESS", 200),
	shp.NumberField("LATEST_AVG", 18),
	shp.NumberField("DEALS", 9),
}

// shapeExts are the files moved into place, in order.
var shapeExts = []string{".dbf", ".shx", ".prj", ".cpg", ".shp"}

// WriteShapefile writes a point shapefile (plus .prj and a UTF-8 .cpg) at
// path. The set is built in a temp dir beside path and moved in file by file.
func WriteShapefile(path string, buildings map[string]model.EnrichedBuilding) error {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir %s", dir)
	}

	tmpDir, err := os.MkdirTemp(dir, ".shp-*")
	if err != nil {
		return eris.Wrap(err, "export: create shapefile temp dir")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck

	if err := writeShapes(filepath.Join(tmpDir, base+".shp"), buildings); err != nil {
		return err
	}
	// go-shp v0.1.1 writes the attribute table as "<base>dbf".
	if err := os.Rename(filepath.Join(tmpDir, base+"dbf"), filepath.Join(tmpDir, base+".dbf")); err != nil {
		return eris.Wrap(err, "export: name dbf")
	}
	if err := os.WriteFile(filepath.Join(tmpDir, base+".prj"), []byte(wgs84PRJ), 0o644); err != nil {
		return eris.Wrap(err, "export: write prj")
	}
	if err := os.WriteFile(filepath.Join(tmpDir, base+".cpg"), []byte("UTF-8"), 0o644); err != nil {
		return eris.Wrap(err, "export: write cpg")
	}

	for _, ext := range shapeExts {
		if err := os.Rename(filepath.Join(tmpDir, base+ext), filepath.Join(dir, base+ext)); err != nil {
			return eris.Wrapf(err, "export: move %s", base+ext)
		}
	}
	return nil
}

func writeShapes(shpPath string, buildings map[string]model.EnrichedBuilding) error {
	w, err := shp.Create(shpPath, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", shpPath)
	}
	defer w.Close()

	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, name := range sortedNames(buildings) {
		b := buildings[name]
		row := int(w.Write(&shp.Point{X: b.Lng, Y: b.Lat}))
		attrs := []any{
			truncateBytes(b.Name, 120),
			truncateBytes(b.Address, 200),
			int(b.LatestAvgPrice),
			len(b.Deals),
		}
		for field, v := range attrs {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of %s", field, name)
			}
		}
	}
	return nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
