// Package geometry converts stored WKT geometry strings into GeoJSON for map clients.
package geometry

import (
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Transcode parses a WKT geometry string and re-encodes it as a GeoJSON
// geometry. Returns false when the string does not parse or the parsed
// geometry cannot be represented in GeoJSON. One bad geometry in the store
// must never fail a whole request, so callers treat false as "skip this
// record" rather than an error.
func Transcode(s string) (*geojson.Geometry, bool) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, false
	}

	encoded, err := geojson.Encode(g)
	if err != nil {
		return nil, false
	}

	return encoded, true
}
