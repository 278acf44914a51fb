// internal/workers/analytics/query-decision-stats/models.go
package querydecisionstats

type Input struct {
	Query   string `json:"query"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Top     int    `json:"top,omitempty"`
	Refresh bool   `json:"refresh,omitempty"` // skip the cache and re-run the aggregation
}

type Output struct {
	Query     string                   `json:"query"`
	Buckets   []map[string]interface{} `json:"buckets"`
	TotalDocs int64                    `json:"total_docs"`
	Took      int64                    `json:"took"` // milliseconds
	CacheHit  bool                     `json:"cache_hit"`
}
