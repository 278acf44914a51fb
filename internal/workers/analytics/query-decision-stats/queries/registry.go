package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"intent-workers/internal/models"
)

// StatsResult carries the flattened aggregation buckets for one query run.
type StatsResult struct {
	Buckets   []map[string]interface{}
	TotalDocs int64
	Took      int64
}

// Execute runs a named stats query against the decisions index and flattens
// the aggregation response into rows a BPMN process can consume directly.
func Execute(ctx context.Context, esClient *elasticsearch.Client, sr StatsRequest) (*StatsResult, error) {
	req, err := BuildQuery(sr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("stats query failed: %s", res.String())
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	result := &StatsResult{Took: time.Since(start).Milliseconds()}

	if hits, ok := r["hits"].(map[string]interface{}); ok {
		if total, ok := hits["total"].(map[string]interface{}); ok {
			if value, ok := total["value"].(float64); ok {
				result.TotalDocs = int64(value)
			}
		}
	}

	aggs, ok := r["aggregations"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("stats response has no aggregations")
	}

	switch sr.Name {
	case models.StatsDecisionsByIntent:
		result.Buckets = extractIntentBuckets(aggs)
	case models.StatsAmbiguityRate:
		result.Buckets = extractAmbiguityRate(aggs)
	case models.StatsClarificationFunnel:
		result.Buckets = extractFunnel(aggs)
	case models.StatsDailyDecisionVolume:
		result.Buckets = extractDailyVolume(aggs)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatsQuery, sr.Name)
	}

	return result, nil
}

func extractIntentBuckets(aggs map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, b := range namedBuckets(aggs, "by_intent") {
		row := map[string]interface{}{
			"intent_id": b["key"],
			"decisions": b["doc_count"],
		}
		if avg, ok := b["avg_confidence"].(map[string]interface{}); ok {
			row["avg_confidence"] = avg["value"]
		}
		out = append(out, row)
	}
	return out
}

func extractAmbiguityRate(aggs map[string]interface{}) []map[string]interface{} {
	var total, ambiguous float64
	for _, b := range namedBuckets(aggs, "by_status") {
		count, _ := b["doc_count"].(float64)
		total += count
		if b["key"] == models.StatusNeedClarification {
			ambiguous += count
		}
	}

	rate := 0.0
	if total > 0 {
		rate = ambiguous / total
	}

	return []map[string]interface{}{{
		"total":          int64(total),
		"ambiguous":      int64(ambiguous),
		"resolved":       int64(total - ambiguous),
		"ambiguity_rate": rate,
	}}
}

func extractFunnel(aggs map[string]interface{}) []map[string]interface{} {
	funnel, ok := aggs["funnel"].(map[string]interface{})
	if !ok {
		return nil
	}
	stages, ok := funnel["buckets"].(map[string]interface{})
	if !ok {
		return nil
	}

	row := make(map[string]interface{}, len(stages))
	for name, raw := range stages {
		if b, ok := raw.(map[string]interface{}); ok {
			if count, ok := b["doc_count"].(float64); ok {
				row[name] = int64(count)
			}
		}
	}
	return []map[string]interface{}{row}
}

func extractDailyVolume(aggs map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, b := range namedBuckets(aggs, "per_day") {
		row := map[string]interface{}{
			"date":      b["key_as_string"],
			"decisions": b["doc_count"],
		}
		for _, sb := range namedBuckets(b, "by_status") {
			if key, ok := sb["key"].(string); ok {
				row[strings.ToLower(key)] = sb["doc_count"]
			}
		}
		out = append(out, row)
	}
	return out
}

// namedBuckets digs the bucket list out of a named sub-aggregation.
func namedBuckets(parent map[string]interface{}, name string) []map[string]interface{} {
	agg, ok := parent[name].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := agg["buckets"].([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(raw))
	for _, b := range raw {
		if m, ok := b.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
