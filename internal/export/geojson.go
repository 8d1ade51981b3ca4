package export

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// FeatureCollection renders each building as a WGS84 point feature, ordered
// by name.
func FeatureCollection(buildings map[string]model.EnrichedBuilding) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(buildings))}
	for _, name := range sortedNames(buildings) {
		b := buildings[name]
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       b.Name,
			Geometry: geom.NewPointFlat(geom.XY, []float64{b.Lng, b.Lat}),
			Properties: map[string]any{
				"name":       b.Name,
				"address":    b.Address,
				"latest_avg": b.LatestAvgPrice,
				"deal_count": len(b.Deals),
				"areas":      b.Areas,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes the buildings as a GeoJSON FeatureCollection.
func WriteGeoJSON(path string, buildings map[string]model.EnrichedBuilding) error {
	return WriteJSON(path, FeatureCollection(buildings))
}
