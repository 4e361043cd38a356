package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

const defaultPrefix = "quiz"

// QuestionLoader fetches question sets from a backing store (file, database).
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error)
}

// QuestionRepository caches question sets in Redis as JSON and falls back to
// a loader on cache miss.
// Sets are stored as: SET {prefix}:questions:{ref} {json}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	prefix string
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration, prefix string) *QuestionRepository {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		prefix: prefix,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error) {
	if set, ok := r.fromCache(ctx, ref); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(ref, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.fromCache(ctx, ref); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestionSet(ctx, ref)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		raw, err := json.Marshal(set)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := r.client.Set(ctx, r.key(ref), raw, r.ttlWithJitter()).Err(); err != nil {
			slog.WarnContext(ctx, "redis: cache question set", "ref", ref, "error", err)
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate removes the cached copy of ref.
func (r *QuestionRepository) Invalidate(ctx context.Context, ref string) error {
	return r.client.Del(ctx, r.key(ref)).Err()
}

func (r *QuestionRepository) fromCache(ctx context.Context, ref string) (domain.QuestionSet, bool) {
	raw, err := r.client.Get(ctx, r.key(ref)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "redis: read cached question set", "ref", ref, "error", err)
		}
		return domain.QuestionSet{}, false
	}

	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		slog.WarnContext(ctx, "redis: decode cached question set", "ref", ref, "error", err)
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (r *QuestionRepository) key(ref string) string {
	return r.prefix + ":questions:" + ref
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
