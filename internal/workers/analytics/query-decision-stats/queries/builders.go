package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"intent-workers/internal/models"
)

var (
	ErrUnknownStatsQuery = errors.New("unknown stats query")
	ErrMissingIndex      = errors.New("index name is required")
)

// StatsRequest describes one aggregation run over the decisions index.
type StatsRequest struct {
	Index string
	Name  models.StatsQuery
	From  string // optional decided_at lower bound, RFC 3339
	To    string // optional decided_at upper bound, RFC 3339
	Top   int    // bucket count for terms aggregations
}

// BuildQuery assembles the aggregation-only search request for a named
// stats query.
func BuildQuery(sr StatsRequest) (*esapi.SearchRequest, error) {
	if sr.Index == "" {
		return nil, ErrMissingIndex
	}

	var queryBody map[string]interface{}

	switch sr.Name {
	case models.StatsDecisionsByIntent:
		queryBody = buildDecisionsByIntentQuery(sr)
	case models.StatsAmbiguityRate:
		queryBody = buildAmbiguityRateQuery(sr)
	case models.StatsClarificationFunnel:
		queryBody = buildClarificationFunnelQuery(sr)
	case models.StatsDailyDecisionVolume:
		queryBody = buildDailyDecisionVolumeQuery(sr)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatsQuery, sr.Name)
	}

	body, _ := json.Marshal(queryBody)
	size := 0

	req := esapi.SearchRequest{
		Index: []string{sr.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	return &req, nil
}

// buildDecisionsByIntentQuery counts resolved decisions per intent with the
// average confidence they resolved at.
func buildDecisionsByIntentQuery(sr StatsRequest) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"status.keyword": models.StatusResolved},
		},
	}
	if tr := timeRangeFilter(sr); tr != nil {
		filters = append(filters, tr)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"aggs": map[string]interface{}{
			"by_intent": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "selected_intent_id.keyword",
					"size":  sr.Top,
				},
				"aggs": map[string]interface{}{
					"avg_confidence": map[string]interface{}{
						"avg": map[string]interface{}{"field": "confidence"},
					},
				},
			},
		},
	}
}

// buildAmbiguityRateQuery counts decisions per status, the rate itself is
// derived when the response is flattened.
func buildAmbiguityRateQuery(sr StatsRequest) map[string]interface{} {
	query := map[string]interface{}{
		"aggs": map[string]interface{}{
			"by_status": map[string]interface{}{
				"terms": map[string]interface{}{"field": "status.keyword"},
			},
		},
	}
	applyTimeRange(query, sr)
	return query
}

// buildClarificationFunnelQuery splits decisions into the three funnel
// stages. A turn count of one means the first utterance resolved without a
// clarification prompt, two or more means the user answered at least one.
func buildClarificationFunnelQuery(sr StatsRequest) map[string]interface{} {
	resolved := map[string]interface{}{
		"term": map[string]interface{}{"status.keyword": models.StatusResolved},
	}

	query := map[string]interface{}{
		"aggs": map[string]interface{}{
			"funnel": map[string]interface{}{
				"filters": map[string]interface{}{
					"filters": map[string]interface{}{
						"clarifications_asked": map[string]interface{}{
							"term": map[string]interface{}{"status.keyword": models.StatusNeedClarification},
						},
						"resolved_direct": map[string]interface{}{
							"bool": map[string]interface{}{
								"filter": []interface{}{
									resolved,
									map[string]interface{}{
										"range": map[string]interface{}{"turn_count": map[string]interface{}{"lte": 1}},
									},
								},
							},
						},
						"resolved_after_clarification": map[string]interface{}{
							"bool": map[string]interface{}{
								"filter": []interface{}{
									resolved,
									map[string]interface{}{
										"range": map[string]interface{}{"turn_count": map[string]interface{}{"gte": 2}},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	applyTimeRange(query, sr)
	return query
}

// buildDailyDecisionVolumeQuery buckets decisions per calendar day with a
// per-status breakdown inside each day.
func buildDailyDecisionVolumeQuery(sr StatsRequest) map[string]interface{} {
	query := map[string]interface{}{
		"aggs": map[string]interface{}{
			"per_day": map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":             "decided_at",
					"calendar_interval": "day",
					"min_doc_count":     0,
				},
				"aggs": map[string]interface{}{
					"by_status": map[string]interface{}{
						"terms": map[string]interface{}{"field": "status.keyword"},
					},
				},
			},
		},
	}
	applyTimeRange(query, sr)
	return query
}

// timeRangeFilter bounds decided_at when the caller asked for a window.
func timeRangeFilter(sr StatsRequest) map[string]interface{} {
	if sr.From == "" && sr.To == "" {
		return nil
	}

	bounds := make(map[string]interface{})
	if sr.From != "" {
		bounds["gte"] = sr.From
	}
	if sr.To != "" {
		bounds["lte"] = sr.To
	}

	return map[string]interface{}{
		"range": map[string]interface{}{"decided_at": bounds},
	}
}

func applyTimeRange(query map[string]interface{}, sr StatsRequest) {
	tr := timeRangeFilter(sr)
	if tr == nil {
		return
	}
	query["query"] = map[string]interface{}{
		"bool": map[string]interface{}{"filter": []interface{}{tr}},
	}
}
