package regionstore

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB serves canned pages per county and records every query it sees.
// Safe for concurrent use since QueryCounties fans out.
type fakeDB struct {
	mu      sync.Mutex
	pages   map[string][]*dynamodb.QueryOutput // keyed by full county name
	errFor  map[string]error
	queries []string // county value of each query, in arrival order
	calls   map[string]int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		pages:  map[string][]*dynamodb.QueryOutput{},
		errFor: map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	county := params.ExpressionAttributeValues[":county"].(*types.AttributeValueMemberS).Value
	f.queries = append(f.queries, county)

	if err := f.errFor[county]; err != nil {
		return nil, err
	}

	n := f.calls[county]
	f.calls[county]++
	pages := f.pages[county]
	if n >= len(pages) {
		return &dynamodb.QueryOutput{}, nil
	}
	return pages[n], nil
}

func item(geoID, county, geometry, percentile string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"GEOID":                   &types.AttributeValueMemberS{Value: geoID},
		"County":                  &types.AttributeValueMemberS{Value: county},
		"Geometry":                &types.AttributeValueMemberS{Value: geometry},
		"WeightedCrimePercentile": &types.AttributeValueMemberN{Value: percentile},
	}
}

func TestQueryCounties_Pagination(t *testing.T) {
	db := newFakeDB()
	lek := map[string]types.AttributeValue{"GEOID": &types.AttributeValueMemberS{Value: "cursor"}}
	db.pages["Travis County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item("48453000101", "Travis County", "POINT (0 0)", "81.5")}, LastEvaluatedKey: lek},
		{Items: []map[string]types.AttributeValue{item("48453000102", "Travis County", "POINT (1 1)", "42.0")}, LastEvaluatedKey: lek},
		{Items: []map[string]types.AttributeValue{item("48453000103", "Travis County", "POINT (2 2)", "13.25")}},
	}

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Travis"})
	require.NoError(t, err)

	// Exactly three requests, all pages concatenated in store order.
	assert.Len(t, db.queries, 3)
	require.Len(t, recs, 3)
	assert.Equal(t, "48453000101", recs[0].GeoID)
	assert.Equal(t, "48453000102", recs[1].GeoID)
	assert.Equal(t, "48453000103", recs[2].GeoID)
	assert.InDelta(t, 81.5, recs[0].CrimePercentile, 1e-9)
}

func TestQueryCounties_FanOut(t *testing.T) {
	db := newFakeDB()
	db.pages["Travis County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item("1", "Travis County", "POINT (0 0)", "50")}},
	}
	db.pages["Hays County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item("2", "Hays County", "POINT (1 1)", "60")}},
	}

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Travis", "Hays", "Williamson"})
	require.NoError(t, err)

	// One independent query per county, including the empty one.
	assert.ElementsMatch(t, []string{"Travis County", "Hays County", "Williamson County"}, db.queries)
	assert.Len(t, recs, 2)
}

func TestQueryCounties_FailFast(t *testing.T) {
	db := newFakeDB()
	db.pages["Travis County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item("1", "Travis County", "POINT (0 0)", "50")}},
	}
	db.errFor["Hays County"] = eris.New("ProvisionedThroughputExceededException")

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Travis", "Hays"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `county "Hays County"`)
	assert.Nil(t, recs, "no partial results on sub-query failure")
}

func TestQueryCounties_EmptyCounty(t *testing.T) {
	db := newFakeDB()

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Loving"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestQueryCounties_SkipsMalformedRecords(t *testing.T) {
	db := newFakeDB()
	missingGeometry := map[string]types.AttributeValue{
		"GEOID":  &types.AttributeValueMemberS{Value: "bad"},
		"County": &types.AttributeValueMemberS{Value: "Travis County"},
	}
	wrongType := map[string]types.AttributeValue{
		"GEOID":                   &types.AttributeValueMemberS{Value: "worse"},
		"County":                  &types.AttributeValueMemberS{Value: "Travis County"},
		"Geometry":                &types.AttributeValueMemberS{Value: "POINT (0 0)"},
		"WeightedCrimePercentile": &types.AttributeValueMemberS{Value: "not a number"},
	}
	db.pages["Travis County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{
			missingGeometry,
			item("48453000101", "Travis County", "POINT (0 0)", "81.5"),
			wrongType,
		}},
	}

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Travis"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "48453000101", recs[0].GeoID)
}

func TestQueryCounties_SkipsRecordWithoutPercentile(t *testing.T) {
	db := newFakeDB()
	noPercentile := map[string]types.AttributeValue{
		"GEOID":    &types.AttributeValueMemberS{Value: "48453000102"},
		"County":   &types.AttributeValueMemberS{Value: "Travis County"},
		"Geometry": &types.AttributeValueMemberS{Value: "POINT (1 1)"},
	}
	db.pages["Travis County"] = []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{
			noPercentile,
			item("48453000101", "Travis County", "POINT (0 0)", "0"),
		}},
	}

	c := New(db, "CrimeData", "CountyIndex")
	recs, err := c.QueryCounties(context.Background(), []string{"Travis"})
	require.NoError(t, err)

	// A record without the percentile attribute is dropped; one with a
	// stored zero is kept.
	require.Len(t, recs, 1)
	assert.Equal(t, "48453000101", recs[0].GeoID)
	assert.Zero(t, recs[0].CrimePercentile)
}
