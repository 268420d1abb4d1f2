package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `tally tracks timed work records grouped into weeks.

Core concepts:
- Week: a labeled date range. Every record belongs to exactly one week.
- Record: one unit of timed work with a duration, an optional score (1-5, 0 = unscored) and audit metadata.
- Aggregate: totals and score statistics for a week, recomputed after any change in that week.

Working with records:
1) Orient: call list_weeks, then get_aggregate for the week you care about.
2) Browse: list_records pages through a week in id order. Pages are served from a small window of loaded chunks, so sequential paging is cheap.
3) Write: create_record / update_record / delete_record. Reads issued after a write always see it.
4) Time work: start_timer saves the running duration periodically; stop_timer saves the final value.
5) Audit: recent_changes lists the journal of record changes.

Docs:
- tally://docs/index
- tally://docs/records
- tally://docs/caching
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "tally://docs/index",
		Name:        "docs_index",
		Title:       "tally docs index",
		Description: "Entry point: what the tools do and which doc to read next.",
		Content: `# tally: Docs Index

## Tools by area

- Weeks: list_weeks, get_week, create_week, update_week, delete_week, refresh_week
- Records: list_records, get_record, create_record, update_record, delete_record
- Metrics: get_aggregate, cache_stats
- Journal: recent_changes
- Timers: start_timer, pause_timer, resume_timer, stop_timer, list_timers

## Read next

- tally://docs/records for field rules and paging
- tally://docs/caching for freshness guarantees and cache_stats
`,
	},
	{
		URI:         "tally://docs/records",
		Name:        "docs_records",
		Title:       "Records and paging",
		Description: "Record fields, validation rules and how list_records pages.",
		Content: `# Records

## Fields

- duration_seconds: non-negative tracked time.
- score: 0 means unscored; otherwise 1 to 5. Scores of 3 and above count as high scores.
- date_audited: YYYY-MM-DD.
- time_begin / time_end: RFC 3339 timestamps; end may not precede begin.

Fields omitted from update_record are left unchanged.

## Paging

list_records returns up to limit rows (default 50, max 500) starting at offset, plus the
week's total row count. Rows are ordered by record id. The response also reports the
chunk window: which fixed-size chunks of the week are loaded and whether any are stale.
Deleting a record shifts every later row back by one.
`,
	},
	{
		URI:         "tally://docs/caching",
		Name:        "docs_caching",
		Title:       "Caching and freshness",
		Description: "What is cached, when it is dropped, and how to read cache_stats.",
		Content: `# Caching

Weeks, record pages, single records, aggregates and row counts are cached in separate
bounded pools. Each pool evicts its least recently used entry when full and expires
entries after a per-pool time to live.

## Freshness

Every write drops the affected cache entries before it returns, even when the write
fails. A read issued after a write therefore always goes to the store.

refresh_week drops everything cached for a week and marks its loaded chunks stale.
Use it after editing the database outside tally.

## cache_stats

Per pool: hits, misses, evictions, expirations, current size, capacity and hit rate.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
