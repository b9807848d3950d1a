package repository

import (
	"context"
	"sync"
	"time"

	"assetbook/internal/domain"

	"github.com/rs/zerolog"
)

const defaultProbeInterval = time.Minute

// FailoverStore serves quota calls from primary and switches to fallback
// after the first primary error. While degraded, primary is probed again at
// most once per probeEvery.
type FailoverStore struct {
	primary    domain.QuotaStore
	fallback   domain.QuotaStore
	logger     *zerolog.Logger
	probeEvery time.Duration
	now        func() time.Time

	mu        sync.Mutex
	degraded  bool
	lastProbe time.Time
}

func NewFailoverStore(primary, fallback domain.QuotaStore, logger *zerolog.Logger) *FailoverStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStore{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		probeEvery: defaultProbeInterval,
		now:        time.Now,
	}
}

// Degraded reports whether calls currently go to the fallback.
func (f *FailoverStore) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *FailoverStore) shouldTryPrimary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.degraded {
		return true
	}
	if f.now().Sub(f.lastProbe) < f.probeEvery {
		return false
	}
	f.lastProbe = f.now()
	return true
}

func (f *FailoverStore) report(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case err == nil && f.degraded:
		f.degraded = false
		f.logger.Info().Msg("primary quota store is back")
	case err != nil:
		if !f.degraded {
			f.logger.Error().Err(err).Msg("primary quota store failed, using fallback")
		}
		f.degraded = true
		f.lastProbe = f.now()
	}
}

func failover[T any](f *FailoverStore, call func(domain.QuotaStore) (T, error)) (T, error) {
	if f.shouldTryPrimary() {
		v, err := call(f.primary)
		f.report(err)
		if err == nil {
			return v, nil
		}
	}
	return call(f.fallback)
}

func (f *FailoverStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return failover(f, func(s domain.QuotaStore) (bool, error) {
		return s.CheckRateLimit(ctx, key, limit, window)
	})
}

func (f *FailoverStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return failover(f, func(s domain.QuotaStore) (bool, error) {
		return s.MarkOnce(ctx, key, ttl)
	})
}
