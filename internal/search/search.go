package search

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultSearchSize is the page size used when a request does not set one.
const DefaultSearchSize = 20

// Hit is one search result.
type Hit struct {
	// EntityType is the kind of entity this hit refers to.
	EntityType string
	// EntityID is the entity's id in the relational store.
	EntityID string
	// Score is bleve's relevance score for the hit.
	Score float64
}

// Results is one page of search results.
type Results struct {
	Hits []Hit
	// Total is the number of matches across all pages.
	Total uint64
}

// Request describes one search.
type Request struct {
	// Query is a user-supplied query string using the standard query
	// string syntax (terms, phrases, field:value, +/- modifiers).
	Query string
	// EntityTypes restricts the search to the given types. Empty means
	// all types.
	EntityTypes []string
	// From and Size page through results. Size defaults to
	// DefaultSearchSize when zero.
	From int
	Size int
}

// Search runs a query against the index.
//
// User-supplied query strings are untrusted input; a query that fails to
// parse yields empty results rather than an error, so a stray "title:"
// typed in a search box never surfaces as a server error.
func (ix *Index) Search(ctx context.Context, req Request) (Results, error) {
	q, ok := buildQuery(req)
	if !ok {
		return Results{Hits: []Hit{}}, nil
	}

	size := req.Size
	if size <= 0 {
		size = DefaultSearchSize
	}

	searchReq := bleve.NewSearchRequestOptions(q, size, req.From, false)
	result, err := ix.idx.SearchInContext(ctx, searchReq)
	if err != nil {
		return Results{}, err
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		entityType, entityID, ok := splitDocID(hit.ID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			EntityType: entityType,
			EntityID:   entityID,
			Score:      hit.Score,
		})
	}
	return Results{Hits: hits, Total: result.Total}, nil
}

// buildQuery assembles the query for one request. The second return is
// false when the query string is malformed.
func buildQuery(req Request) (query.Query, bool) {
	var userQuery query.Query
	trimmed := strings.TrimSpace(req.Query)
	if trimmed == "" {
		userQuery = bleve.NewMatchAllQuery()
	} else {
		qsq := bleve.NewQueryStringQuery(trimmed)
		parsed, err := qsq.Parse()
		if err != nil {
			return nil, false
		}
		userQuery = parsed
	}

	if len(req.EntityTypes) == 0 {
		return userQuery, true
	}

	typeQueries := make([]query.Query, 0, len(req.EntityTypes))
	for _, entityType := range req.EntityTypes {
		tq := bleve.NewTermQuery(entityType)
		tq.SetField(fieldType)
		typeQueries = append(typeQueries, tq)
	}

	boolean := bleve.NewBooleanQuery()
	boolean.AddMust(userQuery)
	boolean.AddMust(bleve.NewDisjunctionQuery(typeQueries...))
	return boolean, true
}
