// Package matching ranks club members as running partners for a requester.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/runclub/internal/domain/availability"
	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/domain/pace"
	"github.com/okian/runclub/internal/domain/scoring"
	"github.com/okian/runclub/pkg/logger"
	"github.com/okian/runclub/pkg/metrics"
)

// Defaults for ranking.
const (
	MinScore       = 25
	MaxResults     = 15
	defaultWorkers = 8
)

var tracer = otel.Tracer("github.com/okian/runclub/internal/domain/matching")

// MemberDirectory resolves members. Unknown ids yield model.ErrNotFound.
type MemberDirectory interface {
	Member(ctx context.Context, id model.MemberID) (model.Member, error)
}

// GroupDirectory lists the groups a member belongs to.
type GroupDirectory interface {
	GroupsOf(ctx context.Context, id model.MemberID) ([]model.Group, error)
}

// RunHistory returns recent runs, newest first.
type RunHistory interface {
	RecentRuns(ctx context.Context, id model.MemberID, limit int) ([]model.RunRecord, error)
}

// AttendanceReader returns recent attendance, newest first.
type AttendanceReader interface {
	RecentAttendance(ctx context.Context, id model.MemberID, limit int) ([]model.AttendanceRecord, error)
}

// Source bundles the collaborators the matcher reads from.
type Source interface {
	MemberDirectory
	GroupDirectory
	RunHistory
	AttendanceReader
}

// Matcher produces ranked partner suggestions. It has no side effects.
type Matcher struct {
	src        Source
	scorer     *scoring.AffinityScorer
	loc        *time.Location
	workers    int
	minScore   int
	maxResults int
	logger     logger.Logger
}

// New creates a Matcher reading from src.
func New(src Source, opts ...Option) *Matcher {
	m := &Matcher{
		src:        src,
		scorer:     scoring.NewAffinityScorer(),
		loc:        time.UTC,
		workers:    defaultWorkers,
		minScore:   MinScore,
		maxResults: MaxResults,
		logger:     logger.Get().Named("matching"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindPartners returns up to MaxResults candidates for requesterID ordered by
// score descending, ties broken by member id ascending.
//
// Unknown requesters, staff requesters and requesters without groups get an
// empty list. Only candidates scoring at least MinScore are kept unless none
// does, in which case every scored candidate is returned.
func (m *Matcher) FindPartners(ctx context.Context, requesterID model.MemberID) ([]model.MatchCandidate, error) {
	ctx, span := tracer.Start(ctx, "matching.FindPartners")
	defer span.End()
	span.SetAttributes(attribute.String("member.id", requesterID.String()))

	start := time.Now()
	out, outcome, err := m.find(ctx, requesterID)
	metrics.RecordMatchRequest(outcome)
	metrics.RecordMatchLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		metrics.RecordErrorByComponent("matching", outcome)
		m.logger.Error(ctx, "find partners failed",
			logger.String("member_id", requesterID.String()),
			logger.Error(err))
		return nil, err
	}
	metrics.RecordMatchResults(len(out))
	span.SetAttributes(attribute.Int("match.results", len(out)))
	return out, nil
}

func (m *Matcher) find(ctx context.Context, requesterID model.MemberID) ([]model.MatchCandidate, string, error) {
	requester, err := m.src.Member(ctx, requesterID)
	if errors.Is(err, model.ErrNotFound) {
		return []model.MatchCandidate{}, "unknown_requester", nil
	}
	if err != nil {
		return nil, "lookup_error", fmt.Errorf("%w: requester %s: %v", ErrLookup, requesterID, err)
	}
	if !requester.Role.IsMember() {
		return []model.MatchCandidate{}, "not_member", nil
	}

	groups, err := m.src.GroupsOf(ctx, requesterID)
	if err != nil {
		return nil, "lookup_error", fmt.Errorf("%w: groups of %s: %v", ErrLookup, requesterID, err)
	}
	if len(groups) == 0 {
		return []model.MatchCandidate{}, "no_groups", nil
	}

	reqProfile, err := m.profile(ctx, requester)
	if err != nil {
		return nil, "lookup_error", err
	}

	ids := candidateIDs(groups, requesterID)
	if len(ids) == 0 {
		return []model.MatchCandidate{}, "no_candidates", nil
	}

	scored, err := m.scoreAll(ctx, reqProfile, groups, ids)
	if err != nil {
		return nil, "lookup_error", err
	}
	metrics.RecordCandidatesScored(len(scored))

	kept := make([]model.MatchCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Score >= m.minScore {
			kept = append(kept, c)
		}
	}
	outcome := "ok"
	if len(kept) == 0 && len(scored) > 0 {
		kept = scored
		outcome = "fallback"
		metrics.RecordMatchFallback()
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].MemberID.String() < kept[j].MemberID.String()
	})
	if len(kept) > m.maxResults {
		kept = kept[:m.maxResults]
	}
	return kept, outcome, nil
}

// profile loads the derived pace and availability of a member.
func (m *Matcher) profile(ctx context.Context, mem model.Member) (scoring.Profile, error) {
	runs, err := m.src.RecentRuns(ctx, mem.ID, pace.HistoryLimit)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("%w: runs of %s: %v", ErrLookup, mem.ID, err)
	}
	att, err := m.src.RecentAttendance(ctx, mem.ID, availability.HistoryLimit)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("%w: attendance of %s: %v", ErrLookup, mem.ID, err)
	}
	p := scoring.Profile{Member: mem, Days: availability.Profile(att, m.loc)}
	p.Pace, p.HasPace = pace.Estimate(runs)
	return p, nil
}

// scoreAll scores every candidate on a bounded pool. The first lookup error
// cancels the remaining work.
func (m *Matcher) scoreAll(ctx context.Context, req scoring.Profile, groups []model.Group, ids []model.MemberID) ([]model.MatchCandidate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*model.MatchCandidate, len(ids))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := m.workers
	if workers > len(ids) {
		workers = len(ids)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c, ok, err := m.scoreOne(ctx, req, groups, ids[i])
				if err != nil {
					fail(err)
					continue
				}
				if ok {
					results[i] = &c
				}
			}
		}()
	}

feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	out := make([]model.MatchCandidate, 0, len(ids))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// scoreOne resolves and scores one candidate. ok is false for candidates that
// vanished or are not plain members.
func (m *Matcher) scoreOne(ctx context.Context, req scoring.Profile, groups []model.Group, id model.MemberID) (model.MatchCandidate, bool, error) {
	if ctx.Err() != nil {
		return model.MatchCandidate{}, false, nil
	}
	mem, err := m.src.Member(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.MatchCandidate{}, false, nil
	}
	if err != nil {
		return model.MatchCandidate{}, false, fmt.Errorf("%w: candidate %s: %v", ErrLookup, id, err)
	}
	if !mem.Role.IsMember() {
		return model.MatchCandidate{}, false, nil
	}
	cand, err := m.profile(ctx, mem)
	if err != nil {
		return model.MatchCandidate{}, false, err
	}
	return m.scorer.Score(scoring.Input{Requester: req, Candidate: cand, Groups: groups}), true, nil
}

// candidateIDs is the union of co-members across groups, first-seen order,
// without the requester.
func candidateIDs(groups []model.Group, requester model.MemberID) []model.MemberID {
	seen := map[model.MemberID]struct{}{requester: {}}
	var ids []model.MemberID
	for _, g := range groups {
		for _, id := range g.MemberIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
