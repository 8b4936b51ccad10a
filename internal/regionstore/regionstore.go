// Package regionstore reads per-region risk records from the DynamoDB table
// that holds pre-computed crime percentiles, one record per census area.
package regionstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultFanOutLimit = 8

// Querier is the slice of the DynamoDB client the store needs. The real
// *dynamodb.Client satisfies it; tests substitute fakes.
type Querier interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Record is one region row. Records are owned by the table; the service only
// reads them.
type Record struct {
	GeoID           string
	County          string
	Geometry        string
	CrimePercentile float64
}

// Client queries the region table through its county secondary index.
type Client struct {
	db          Querier
	table       string
	index       string
	fanOutLimit int
}

// Option configures the client.
type Option func(*Client)

// WithFanOutLimit caps how many county queries run concurrently.
func WithFanOutLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.fanOutLimit = n
		}
	}
}

// New creates a region store client over the given table and county index.
func New(db Querier, table, index string, opts ...Option) *Client {
	c := &Client{
		db:          db,
		table:       table,
		index:       index,
		fanOutLimit: defaultFanOutLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryCounties fetches all records for every county in the set, running the
// per-county queries concurrently. The call is all-or-nothing: if any county
// query fails, the whole call fails with that error and no partial results
// are returned. Partial geographic coverage would read as "no risk data here"
// when the real cause was a store error.
//
// Record ordering across counties follows completion order and is not
// guaranteed; within one county it preserves store page order.
func (c *Client) QueryCounties(ctx context.Context, counties []string) ([]Record, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanOutLimit)

	perCounty := make([][]Record, len(counties))
	for i, county := range counties {
		g.Go(func() error {
			recs, err := c.queryCounty(gctx, county)
			if err != nil {
				return err
			}
			perCounty[i] = recs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Record
	for _, recs := range perCounty {
		all = append(all, recs...)
	}
	return all, nil
}

// queryCounty pages through the county index until the store stops returning
// a continuation key. Zero matching records is not an error.
func (c *Client) queryCounty(ctx context.Context, county string) ([]Record, error) {
	// Table rows store the decorated form, e.g. "Travis County".
	full := county + " County"

	var (
		records  []Record
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := c.db.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(c.table),
			IndexName:                aws.String(c.index),
			KeyConditionExpression:   aws.String("#county = :county"),
			ExpressionAttributeNames: map[string]string{"#county": "County"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":county": &types.AttributeValueMemberS{Value: full},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "regionstore: query county %q", full)
		}

		for _, item := range out.Items {
			rec, ok := unmarshalRecord(item)
			if !ok {
				zap.L().Warn("regionstore: skipping malformed record",
					zap.String("county", full),
				)
				continue
			}
			records = append(records, rec)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return records, nil
}

// unmarshalRecord extracts a Record from a raw item. Every required field
// must be present with the right type; a record missing any of them is
// reported as malformed rather than surfaced half-empty. The percentile is
// unmarshaled through a pointer so an absent attribute is distinguishable
// from a stored zero.
func unmarshalRecord(item map[string]types.AttributeValue) (Record, bool) {
	var raw struct {
		GeoID           string   `dynamodbav:"GEOID"`
		County          string   `dynamodbav:"County"`
		Geometry        string   `dynamodbav:"Geometry"`
		CrimePercentile *float64 `dynamodbav:"WeightedCrimePercentile"`
	}
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return Record{}, false
	}
	if raw.GeoID == "" || raw.County == "" || raw.Geometry == "" || raw.CrimePercentile == nil {
		return Record{}, false
	}
	return Record{
		GeoID:           raw.GeoID,
		County:          raw.County,
		Geometry:        raw.Geometry,
		CrimePercentile: *raw.CrimePercentile,
	}, true
}
