// Package scoring computes the affinity between two club members.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/runclub/internal/domain/availability"
	"github.com/okian/runclub/internal/domain/model"
)

// Default points for each signal.
const (
	SharedGroupPoints  = 30
	AvailabilityPoints = 20
)

// defaultRationale is used when no signal contributed a clause.
const defaultRationale = "Same club"

// Tier awards Points when the absolute pace difference is below Below.
type Tier struct {
	Below  float64 // min/km, exclusive upper bound
	Points int
}

// DefaultPaceTiers are checked in order; the first matching tier wins.
var DefaultPaceTiers = []Tier{
	{Below: 0.25, Points: 40},
	{Below: 0.5, Points: 30},
	{Below: 1.0, Points: 20},
	{Below: 2.0, Points: 10},
}

// Option applies a configuration option to the AffinityScorer.
type Option func(*AffinityScorer)

// WithPaceTiers replaces the pace tiers. Tiers must be sorted by Below ascending.
func WithPaceTiers(tiers []Tier) Option {
	return func(s *AffinityScorer) {
		if len(tiers) > 0 {
			s.paceTiers = append([]Tier(nil), tiers...)
		}
	}
}

// WithSignalPoints overrides the shared-group and availability points.
func WithSignalPoints(group, days int) Option {
	return func(s *AffinityScorer) {
		if group >= 0 {
			s.groupPoints = group
		}
		if days >= 0 {
			s.dayPoints = days
		}
	}
}

// Profile is the derived view of a member used for scoring.
type Profile struct {
	Member  model.Member
	Pace    float64
	HasPace bool
	Days    availability.Set
}

// Input bundles what the scorer compares.
type Input struct {
	Requester Profile
	Candidate Profile
	// Groups are the requester's groups with membership materialized.
	Groups []model.Group
}

// AffinityScorer adds independent contributions for shared group, pace
// similarity and shared weekday availability. Scores are not normalized.
type AffinityScorer struct {
	groupPoints int
	dayPoints   int
	paceTiers   []Tier
}

// NewAffinityScorer creates a scorer with the default point table.
func NewAffinityScorer(opts ...Option) *AffinityScorer {
	s := &AffinityScorer{
		groupPoints: SharedGroupPoints,
		dayPoints:   AvailabilityPoints,
		paceTiers:   DefaultPaceTiers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PacePoints returns the pace contribution for two known paces.
func (s *AffinityScorer) PacePoints(a, b float64) int {
	diff := math.Abs(a - b)
	for _, t := range s.paceTiers {
		if diff < t.Below {
			return t.Points
		}
	}
	return 0
}

// Score compares requester and candidate. It always returns a value;
// callers decide which candidates are worth scoring.
func (s *AffinityScorer) Score(in Input) model.MatchCandidate {
	cand := in.Candidate
	out := model.MatchCandidate{
		MemberID:    cand.Member.ID,
		DisplayName: cand.Member.DisplayName(),
		Email:       cand.Member.Email,
	}
	if cand.HasPace {
		p := cand.Pace
		out.Pace = &p
	}

	var why strings.Builder
	for _, g := range in.Groups {
		if g.Has(cand.Member.ID) {
			out.Score += s.groupPoints
			out.GroupName = g.Name
			out.GroupLevel = g.Level
			fmt.Fprintf(&why, "Same group (%s). ", g.Name)
			break
		}
	}

	req := in.Requester
	switch {
	case req.HasPace && cand.HasPace:
		out.Score += s.PacePoints(req.Pace, cand.Pace)
		fmt.Fprintf(&why, "Similar pace (you %.1f, them %.1f min/km). ", req.Pace, cand.Pace)
	case cand.HasPace:
		fmt.Fprintf(&why, "Average pace %.1f min/km. ", cand.Pace)
	}

	if req.Days.Intersects(cand.Days) {
		out.Score += s.dayPoints
		why.WriteString("Compatible availability. ")
	}

	out.Rationale = strings.TrimSpace(why.String())
	if out.Rationale == "" {
		out.Rationale = defaultRationale
	}
	return out
}
