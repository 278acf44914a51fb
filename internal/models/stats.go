package models

// StatsQuery names one of the pre-built aggregations over recorded
// routing decisions.
type StatsQuery string

const (
	StatsDecisionsByIntent   StatsQuery = "decisions_by_intent"
	StatsAmbiguityRate       StatsQuery = "ambiguity_rate"
	StatsClarificationFunnel StatsQuery = "clarification_funnel"
	StatsDailyDecisionVolume StatsQuery = "daily_decision_volume"
)
