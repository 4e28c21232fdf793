package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/metrics"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/ranking"
	"github.com/stwalsh4118/realty/internal/repository"
	"github.com/stwalsh4118/realty/internal/search"
)

// DefaultCandidateLimit is how many matches are handed to the ranker when not configured.
const DefaultCandidateLimit = 20

// Fallback reasons reported when the picks are not model-ranked.
const (
	ReasonRankingDisabled    = "ranking_disabled"
	ReasonRankingUnavailable = "ranking_unavailable"
	ReasonRankingInvalid     = "ranking_invalid_response"
)

// Preview is the confirmation step: what the filters compile to.
type Preview struct {
	Criteria search.Criteria `json:"criteria"`
	Summary  []string        `json:"summary"`
}

// Recommendation is the outcome of one recommendation request.
// Picks are in ranking order, or in query order when Ranked is false.
type Recommendation struct {
	Preview
	CandidateCount int
	Picks          []models.Listing
	Ranked         bool
	FallbackReason string
	Map            models.FeatureCollection
}

// RecommendationService defines the recommendation flow.
type RecommendationService interface {
	// Options returns the selectable filter values.
	Options() search.FormOptions

	// Preview compiles filters without touching the database.
	// Returns an error wrapping search.ErrInvalidFilters for unknown labels or bad ranges.
	Preview(ctx context.Context, filters search.Filters) (*Preview, error)

	// Recommend compiles filters, searches candidates and ranks them.
	// No matches yields a Recommendation with CandidateCount 0 and no picks, and the
	// ranker is not called. A failing ranker degrades to the first candidates in query order.
	Recommend(ctx context.Context, filters search.Filters) (*Recommendation, error)
}

type recommendationService struct {
	repo           repository.BuildingRepository
	ranker         ranking.Ranker
	candidateLimit int
	now            func() time.Time
	log            *logger.Logger
}

// NewRecommendationService creates a new instance of RecommendationService.
func NewRecommendationService(repo repository.BuildingRepository, ranker ranking.Ranker, candidateLimit int, log *logger.Logger) RecommendationService {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &recommendationService{
		repo:           repo,
		ranker:         ranker,
		candidateLimit: candidateLimit,
		now:            time.Now,
		log:            log,
	}
}

func (s *recommendationService) Options() search.FormOptions {
	return search.Options()
}

func (s *recommendationService) Preview(ctx context.Context, filters search.Filters) (*Preview, error) {
	criteria, err := search.Compile(filters, s.now())
	if err != nil {
		s.log.Warn("Invalid filters", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	return &Preview{Criteria: criteria, Summary: criteria.Summary()}, nil
}

func (s *recommendationService) Recommend(ctx context.Context, filters search.Filters) (*Recommendation, error) {
	preview, err := s.Preview(ctx, filters)
	if err != nil {
		return nil, err
	}

	s.log.Info("Searching candidates", map[string]interface{}{
		"predicates": len(preview.Criteria.Predicates),
		"limit":      s.candidateLimit,
	})

	candidates, err := s.repo.Search(ctx, preview.Criteria, s.candidateLimit)
	if err != nil {
		s.log.Error("Failed to search candidates", err, map[string]interface{}{
			"criteria": preview.Criteria.Fingerprint(),
		})
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	rec := &Recommendation{
		Preview:        *preview,
		CandidateCount: len(candidates),
		Picks:          []models.Listing{},
	}

	if len(candidates) == 0 {
		metrics.ObserveRanking(metrics.OutcomeEmpty)
		s.log.Info("No candidates matched", map[string]interface{}{
			"criteria": preview.Criteria.Fingerprint(),
		})
		rec.Map = models.NewFeatureCollection(nil)
		return rec, nil
	}

	ids, err := s.ranker.Rank(ctx, preview.Criteria, candidates)
	switch {
	case err == nil:
		rec.Picks = pick(candidates, ids)
		rec.Ranked = true
	case ctx.Err() != nil:
		return nil, fmt.Errorf("recommendation cancelled: %w", ctx.Err())
	default:
		rec.FallbackReason = fallbackReason(err)
		rec.Picks = firstN(candidates, ranking.PickCount)
		outcome := metrics.OutcomeFallback
		if errors.Is(err, ranking.ErrDisabled) {
			outcome = metrics.OutcomeDisabled
		}
		metrics.ObserveRanking(outcome)
		s.log.Warn("Ranking failed, returning candidates in query order", map[string]interface{}{
			"reason": rec.FallbackReason,
			"error":  err.Error(),
		})
	}

	features := make([]models.Feature, len(rec.Picks))
	for i, l := range rec.Picks {
		features[i] = l.Feature()
	}
	rec.Map = models.NewFeatureCollection(features)

	s.log.Info("Recommendation ready", map[string]interface{}{
		"candidates": rec.CandidateCount,
		"picks":      len(rec.Picks),
		"ranked":     rec.Ranked,
	})
	return rec, nil
}

// pick returns the candidates named by ids, in the order of ids.
func pick(candidates []models.Listing, ids []int64) []models.Listing {
	byID := make(map[int64]models.Listing, len(candidates))
	for _, c := range candidates {
		byID[c.Building.ID] = c
	}
	picks := make([]models.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			picks = append(picks, l)
		}
	}
	return picks
}

func firstN(candidates []models.Listing, n int) []models.Listing {
	if len(candidates) < n {
		n = len(candidates)
	}
	out := make([]models.Listing, n)
	copy(out, candidates[:n])
	return out
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ranking.ErrDisabled):
		return ReasonRankingDisabled
	case errors.Is(err, ranking.ErrMalformedResponse), errors.Is(err, ranking.ErrNoValidIDs):
		return ReasonRankingInvalid
	default:
		return ReasonRankingUnavailable
	}
}
