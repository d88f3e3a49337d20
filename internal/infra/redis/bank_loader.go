package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-session-service/internal/bank"
	"trivia-session-service/internal/domain"
)

const bankKey = "quiz:bank"

// CachedBankLoader fronts a slow question-bank loader (Postgres, Mongo) with a
// Redis TTL cache so repeated cold starts across instances share one load.
type CachedBankLoader struct {
	client *redis.Client
	inner  bank.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCachedBankLoader(client *redis.Client, inner bank.Loader, ttl time.Duration) *CachedBankLoader {
	return &CachedBankLoader{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *CachedBankLoader) LoadAll(ctx context.Context) ([]domain.Question, error) {
	if cached, ok := l.fromCache(ctx); ok {
		return cached, nil
	}

	result, err, _ := l.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if cached, ok := l.fromCache(ctx); ok {
			return cached, nil
		}
		questions, err := l.inner.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(questions); err == nil {
			_ = l.client.Set(ctx, bankKey, data, l.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (l *CachedBankLoader) fromCache(ctx context.Context) ([]domain.Question, bool) {
	data, err := l.client.Get(ctx, bankKey).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (l *CachedBankLoader) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(l.rnd.Int63n(jitterMax+1))
}
