package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/domain"
)

// RouterConfig controls retries and timeouts for every provider.
type RouterConfig struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// RouterConfigFrom converts the application's LLM settings.
func RouterConfigFrom(cfg config.LLMConfig) RouterConfig {
	return RouterConfig{
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     time.Duration(cfg.RetryDelaySeconds) * time.Second,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}
}

// Router dispatches requests to the provider named by the model info.
type Router struct {
	providers map[string]Provider
	config    RouterConfig
	logger    *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Completer = (*Router)(nil)

// NewRouter creates a router over providers. A later provider with the same
// name replaces an earlier one.
func NewRouter(cfg RouterConfig, logger *slog.Logger, providers ...Provider) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	r := &Router{
		providers: make(map[string]Provider, len(providers)),
		config:    cfg,
		logger:    logger.With("component", "llm_router"),
		sleep:     sleepContext,
	}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// Complete sends req to the model's provider. Transient failures are
// retried up to MaxRetries times; permanent ones return at once.
func (r *Router) Complete(ctx context.Context, model domain.ModelInfo, req Request) (string, error) {
	provider, ok := r.providers[strings.ToLower(model.Provider)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, model.Provider)
	}
	log := r.logger.With("model", model)

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt - 1)
			log.InfoContext(ctx, "retrying model call",
				"attempt", attempt+1,
				"delay", delay.String())
			if err := r.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("%w: %w", ErrTransientFailure, err)
			}
		}

		text, err := r.attempt(ctx, provider, model, req)
		if err == nil {
			if attempt > 0 {
				log.InfoContext(ctx, "model call succeeded after retry", "attempt", attempt+1)
			}
			return text, nil
		}
		lastErr = err

		if IsPermanent(err) {
			log.WarnContext(ctx, "permanent model error, not retrying", "error", err)
			return "", err
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrTransientFailure, ctx.Err())
		}
		log.WarnContext(ctx, "model call failed",
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetries+1,
			"error", err)
	}

	return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %w",
		ErrTransientFailure, r.config.MaxRetries, lastErr)
}

func (r *Router) attempt(ctx context.Context, p Provider, model domain.ModelInfo, req Request) (string, error) {
	if r.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RequestTimeout)
		defer cancel()
	}
	text, err := p.Complete(ctx, model, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// backoff returns base * 2^n scaled by a jitter factor in [0.5, 1).
func (r *Router) backoff(n int) time.Duration {
	base := r.config.RetryDelay
	if base <= 0 {
		return 0
	}
	d := float64(base) * math.Pow(2, float64(n))
	return time.Duration(d * (0.5 + rand.Float64()*0.5))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PermanentStatus reports whether an HTTP status from a provider means the
// request itself is wrong. 4xx other than 408 and 429 are permanent.
func PermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != 408 && code != 429
}
