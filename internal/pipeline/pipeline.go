// Package pipeline runs the address -> risk-area aggregation: geocode the
// address, resolve its county and neighbors, fan out region queries, and
// assemble the map payload.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/insky7/txcrimemap/internal/blob"
	"github.com/insky7/txcrimemap/internal/geometry"
	"github.com/insky7/txcrimemap/internal/neighbors"
	"github.com/insky7/txcrimemap/internal/regionstore"
	"github.com/insky7/txcrimemap/pkg/geocode"
)

// ErrNotFound marks request failures the caller should surface as 404:
// unresolvable address, no county component, or no renderable areas.
// Everything else is an upstream failure and maps to 500.
var ErrNotFound = eris.New("pipeline: not found")

// RegionQuerier is the fan-out contract of the region store client.
type RegionQuerier interface {
	QueryCounties(ctx context.Context, counties []string) ([]regionstore.Record, error)
}

// Area is one renderable region in the response.
type Area struct {
	GeoID           string            `json:"geo_id"`
	County          string            `json:"county"`
	CrimePercentile float64           `json:"crime_percentile"`
	Geometry        *geojson.Geometry `json:"geometry"`
}

// Response is the aggregated payload for one request.
type Response struct {
	Center geocode.Point `json:"center"`
	Areas  []Area        `json:"areas"`
}

// Pipeline aggregates risk areas around a street address.
type Pipeline struct {
	geocoder    geocode.Client
	blobs       blob.Getter
	regions     RegionQuerier
	bucket      string
	neighborKey string
}

// New creates a Pipeline with all dependencies injected. The blob and store
// clients are long-lived, thread-safe handles shared across requests.
func New(geocoder geocode.Client, blobs blob.Getter, regions RegionQuerier, bucket, neighborKey string) *Pipeline {
	return &Pipeline{
		geocoder:    geocoder,
		blobs:       blobs,
		regions:     regions,
		bucket:      bucket,
		neighborKey: neighborKey,
	}
}

// Handle runs the full aggregation for one address. Stages run sequentially;
// any stage failure is terminal for the request, with ErrNotFound reserved
// for the "nothing there" cases.
func (p *Pipeline) Handle(ctx context.Context, address string) (*Response, error) {
	log := zap.L().With(zap.String("address", address))

	results, err := p.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: geocode")
	}
	if len(results) == 0 {
		log.Info("pipeline: address did not resolve")
		return nil, ErrNotFound
	}

	best := results[0]
	county, ok := best.County()
	if !ok {
		log.Info("pipeline: no county component in geocode result")
		return nil, ErrNotFound
	}
	log.Info("pipeline: resolved county",
		zap.String("county", county),
		zap.Float64("lat", best.Center.Lat),
		zap.Float64("lon", best.Center.Lon),
	)

	adjacency, err := neighbors.Load(ctx, p.blobs, p.bucket, p.neighborKey)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load neighbor map")
	}

	countySet := adjacency.CountySet(county)
	log.Info("pipeline: querying counties", zap.Strings("counties", countySet))

	records, err := p.regions.QueryCounties(ctx, countySet)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: query regions")
	}

	areas := make([]Area, 0, len(records))
	for _, rec := range records {
		g, ok := geometry.Transcode(rec.Geometry)
		if !ok {
			log.Warn("pipeline: dropping region with bad geometry",
				zap.String("geo_id", rec.GeoID),
				zap.String("county", rec.County),
			)
			continue
		}
		areas = append(areas, Area{
			GeoID:           rec.GeoID,
			County:          rec.County,
			CrimePercentile: rec.CrimePercentile,
			Geometry:        g,
		})
	}

	if len(areas) == 0 {
		log.Info("pipeline: no renderable areas", zap.Int("records", len(records)))
		return nil, ErrNotFound
	}

	return &Response{Center: best.Center, Areas: areas}, nil
}
