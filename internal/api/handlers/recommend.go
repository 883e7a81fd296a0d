package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/eligibility"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/internal/portfolio"
	"github.com/heliosquant/helios/internal/scoring"
	"github.com/heliosquant/helios/pkg/logger"
)

// RecommendHandler runs one evaluation round on demand and returns the
// ranked recommendations with the target portfolio.
type RecommendHandler struct {
	source      contracts.CandidateSource
	evaluator   *evaluate.Evaluator
	filter      *eligibility.Filter
	constructor *portfolio.Constructor
	logger      *logger.Logger
}

// NewRecommendHandler creates a new recommendation handler
func NewRecommendHandler(
	source contracts.CandidateSource,
	evaluator *evaluate.Evaluator,
	policy *contracts.InvestorPolicy,
	log *logger.Logger,
) *RecommendHandler {
	return &RecommendHandler{
		source:      source,
		evaluator:   evaluator,
		filter:      eligibility.NewFilter(policy, log),
		constructor: portfolio.NewConstructor(policy, log),
		logger:      log,
	}
}

// RecommendRequest is the evaluation round request body
type RecommendRequest struct {
	AsOf string `json:"as_of"` // YYYY-MM-DD, defaults to today
}

// Recommendation is one ranked candidate in the response
type Recommendation struct {
	Ticker           string   `json:"ticker"`
	Name             string   `json:"name"`
	Sector           string   `json:"sector"`
	BlendedScore     float64  `json:"blended_score"`
	Confidence       float64  `json:"confidence"`
	Label            string   `json:"label"`
	Eligible         bool     `json:"eligible"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
	TargetWeight     float64  `json:"target_weight"`
}

// Recommend evaluates the universe as of a date
// POST /api/recommendations
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	candidates, err := h.source.Candidates(ctx, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load candidates")
		respondError(w, http.StatusBadGateway, "candidate source unavailable")
		return
	}
	if len(candidates) == 0 {
		respondError(w, http.StatusNotFound, "no candidates as of "+asOf.Format("2006-01-02"))
		return
	}

	if _, err := h.evaluator.EvaluateAll(ctx, candidates, asOf); err != nil {
		h.logger.WithError(err).Error("Evaluation round failed")
		respondError(w, http.StatusBadGateway, "scoring round failed")
		return
	}

	eligible := h.filter.Apply(candidates)
	target := h.constructor.Construct(asOf, eligible)

	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		rec := Recommendation{
			Ticker:           c.Ticker,
			Name:             c.Name,
			Sector:           c.Sector,
			Eligible:         c.Eligible,
			RejectionReasons: c.RejectionReasons,
			TargetWeight:     target.Weight(c.Ticker),
		}
		if c.HasScores() {
			rec.BlendedScore = c.ScoreSet.BlendedScore
			rec.Confidence = c.ScoreSet.Confidence
			rec.Label = scoring.Recommendation(c.ScoreSet.BlendedScore)
		}
		recs = append(recs, rec)
	}

	// Score descending, ticker ascending on ties
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].BlendedScore != recs[j].BlendedScore {
			return recs[i].BlendedScore > recs[j].BlendedScore
		}
		return recs[i].Ticker < recs[j].Ticker
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":           asOf.Format("2006-01-02"),
		"recommendations": recs,
		"portfolio":       target,
	})
}
