package evaluate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/scoring"
	"github.com/heliosquant/helios/pkg/config"
	"github.com/heliosquant/helios/pkg/logger"
	"github.com/heliosquant/helios/pkg/redis"
)

// Evaluator runs the scoring agents over a candidate set for one
// as-of date. Candidates are scored concurrently under a bounded pool
// sized for the providers' rate limits; construction only starts once
// every outstanding evaluation has settled.
type Evaluator struct {
	providers  []contracts.ScoreProvider
	aggregator *scoring.Aggregator

	callTimeout    time.Duration
	retryBackoff   time.Duration
	maxConcurrency int

	pacer       *rate.Limiter
	rateLimiter *redis.RateLimiter

	logger *logger.Logger
}

// New creates an evaluator from provider settings
func New(
	providers []contracts.ScoreProvider,
	aggregator *scoring.Aggregator,
	cfg config.ProviderConfig,
	log *logger.Logger,
) *Evaluator {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var pacer *rate.Limiter
	if cfg.CallsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1)
	}

	return &Evaluator{
		providers:      providers,
		aggregator:     aggregator,
		callTimeout:    cfg.CallTimeout,
		retryBackoff:   cfg.RetryBackoff,
		maxConcurrency: concurrency,
		pacer:          pacer,
		logger:         log,
	}
}

// WithRateLimiter adds a shared cross-process rate limiter on top of
// the in-process pacer
func (e *Evaluator) WithRateLimiter(limiter *redis.RateLimiter) *Evaluator {
	e.rateLimiter = limiter
	return e
}

// EvaluateAll scores every candidate and attaches the blended
// ScoreSet in place. Per-candidate failures become gap outcomes, never
// errors; only context cancellation aborts the round. The returned
// outcomes are index-aligned with candidates.
func (e *Evaluator) EvaluateAll(ctx context.Context, candidates []contracts.Candidate, asOf time.Time) ([]contracts.ScoreOutcome, error) {
	outcomes := make([]contracts.ScoreOutcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for i := range candidates {
		g.Go(func() error {
			outcomes[i] = e.evaluateOne(gctx, candidates[i].Ticker, asOf)
			if !outcomes[i].Ok() && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	// Join barrier: ranking never starts on partial results
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := 0
	for i := range candidates {
		if outcomes[i].Ok() {
			candidates[i].ScoreSet = outcomes[i].ScoreSet
			scored++
		}
	}

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"as_of":      asOf.Format("2006-01-02"),
			"candidates": len(candidates),
			"scored":     scored,
			"gaps":       len(candidates) - scored,
		}).Info("Candidate evaluation completed")
	}

	return outcomes, nil
}

// evaluateOne collects every agent's score for a ticker and blends
// them. A timed-out or failed agent is simply absent from the blend.
func (e *Evaluator) evaluateOne(ctx context.Context, ticker string, asOf time.Time) contracts.ScoreOutcome {
	scores := make([]contracts.AgentScore, 0, len(e.providers))

	for _, p := range e.providers {
		if ctx.Err() != nil {
			break
		}

		score, err := e.callProvider(ctx, p, ticker, asOf)
		if err != nil {
			if e.logger != nil {
				e.logger.WithFields(map[string]interface{}{
					"ticker": ticker,
					"agent":  p.AgentID(),
					"error":  err.Error(),
				}).Warn("Agent call failed, treating as missing score")
			}
			continue
		}
		if err := scoring.ValidateScore(score); err != nil {
			if e.logger != nil {
				e.logger.WithError(err).WithField("ticker", ticker).Warn("Rejected out-of-range agent score")
			}
			continue
		}
		// A score produced after the as-of date would leak future
		// information into the blend
		if !score.ProducedAt.IsZero() && score.ProducedAt.After(endOfDay(asOf)) {
			if e.logger != nil {
				e.logger.WithFields(map[string]interface{}{
					"ticker":      ticker,
					"agent":       p.AgentID(),
					"produced_at": score.ProducedAt,
					"as_of":       asOf,
				}).Warn("Rejected score produced after as-of date")
			}
			continue
		}
		scores = append(scores, score)
	}

	return e.aggregator.Blend(ticker, asOf, scores)
}

// callProvider performs one rate-limited agent call with a per-call
// timeout and a single bounded retry on timeout
func (e *Evaluator) callProvider(ctx context.Context, p contracts.ScoreProvider, ticker string, asOf time.Time) (contracts.AgentScore, error) {
	score, err := e.callOnce(ctx, p, ticker, asOf)
	if err == nil {
		return score, nil
	}

	// One retry after backoff, timeout-class failures only
	if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return contracts.AgentScore{}, err
	}

	select {
	case <-ctx.Done():
		return contracts.AgentScore{}, ctx.Err()
	case <-time.After(e.retryBackoff):
	}

	return e.callOnce(ctx, p, ticker, asOf)
}

func (e *Evaluator) callOnce(ctx context.Context, p contracts.ScoreProvider, ticker string, asOf time.Time) (contracts.AgentScore, error) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx, redis.ScoreRateLimit); err != nil {
			return contracts.AgentScore{}, err
		}
	}
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return contracts.AgentScore{}, err
		}
	}

	callCtx := ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	return p.Score(callCtx, ticker, asOf)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
