package model

// MatchCandidate is one ranked running-partner suggestion.
type MatchCandidate struct {
	MemberID    MemberID `json:"member_id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email,omitempty"`
	Pace        *float64 `json:"pace_min_per_km,omitempty"` // nil when unknown
	GroupName   string   `json:"group_name,omitempty"`
	GroupLevel  string   `json:"group_level,omitempty"`
	Score       int      `json:"score"`
	Rationale   string   `json:"rationale"`
}
