// Package neighbors loads the county adjacency table used to expand a target
// county into the set of counties worth querying.
package neighbors

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/insky7/txcrimemap/internal/blob"
)

// Map is a county name -> neighboring county names adjacency table. Names are
// bare ("Travis", not "Travis County"). Read-only once loaded.
type Map map[string][]string

// Load fetches the adjacency object from the blob store and decodes it. The
// object is loaded fresh per request; it is small and changes rarely, so the
// extra fetch is cheaper than cache invalidation.
func Load(ctx context.Context, g blob.Getter, bucket, key string) (Map, error) {
	data, err := blob.Fetch(ctx, g, bucket, key)
	if err != nil {
		return nil, eris.Wrap(err, "neighbors: fetch adjacency table")
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "neighbors: decode adjacency table")
	}
	return m, nil
}

// CountySet returns the target county followed by its neighbors, deduplicated
// in first-seen order. A target missing from the map just has no neighbors.
func (m Map) CountySet(target string) []string {
	seen := map[string]bool{target: true}
	set := []string{target}
	for _, n := range m[target] {
		if seen[n] {
			continue
		}
		seen[n] = true
		set = append(set, n)
	}
	return set
}
