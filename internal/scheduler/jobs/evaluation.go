package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/data"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/pkg/logger"
)

// EvaluationJob scores the whole universe after the close and persists
// the blended score sets for the next morning's recommendations.
type EvaluationJob struct {
	source    contracts.CandidateSource
	evaluator *evaluate.Evaluator
	scores    *data.ScoreRepository
	logger    *logger.Logger
}

// NewEvaluationJob creates a new evaluation job
func NewEvaluationJob(
	source contracts.CandidateSource,
	evaluator *evaluate.Evaluator,
	scores *data.ScoreRepository,
	log *logger.Logger,
) *EvaluationJob {
	return &EvaluationJob{
		source:    source,
		evaluator: evaluator,
		scores:    scores,
		logger:    log,
	}
}

// Name returns the job name
func (j *EvaluationJob) Name() string {
	return "daily_evaluation"
}

// Schedule runs at 6 PM on weekdays, after the close
func (j *EvaluationJob) Schedule() string {
	return "0 0 18 * * MON-FRI"
}

// Run scores every candidate and stores the results
func (j *EvaluationJob) Run(ctx context.Context) error {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	candidates, err := j.source.Candidates(ctx, asOf)
	if err != nil {
		return fmt.Errorf("failed to load universe: %w", err)
	}
	if len(candidates) == 0 {
		j.logger.Warn("Universe is empty, nothing to evaluate")
		return nil
	}

	outcomes, err := j.evaluator.EvaluateAll(ctx, candidates, asOf)
	if err != nil {
		return fmt.Errorf("evaluation round failed: %w", err)
	}

	saved, gaps := 0, 0
	for _, outcome := range outcomes {
		if !outcome.Ok() {
			gaps++
			continue
		}
		if err := j.scores.Save(ctx, outcome.ScoreSet); err != nil {
			j.logger.WithError(err).WithField("ticker", outcome.Ticker).Warn("Failed to persist score set")
			continue
		}
		saved++
	}

	j.logger.WithFields(map[string]interface{}{
		"as_of": asOf.Format("2006-01-02"),
		"saved": saved,
		"gaps":  gaps,
	}).Info("Daily evaluation completed")

	return nil
}
