package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"practice-test-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches question banks from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankSaver persists uploaded banks in the backing store.
type BankSaver interface {
	SaveBank(ctx context.Context, bank domain.Bank) error
}

// BankRepository caches validated bank documents in Redis and falls back to
// a loader on cache miss. The whole document is stored as one JSON blob:
// SET bank:{bankID}:doc {json} EX {ttl}
// Uploads need prompts and explanations to round-trip intact, so the blob
// form is used rather than a per-question answer hash.
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	key := r.docKey(bankID)

	if bank, ok := r.fromCache(ctx, key, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.fromCache(ctx, key, bankID); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		r.cacheBank(ctx, bank)
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

// SaveBank writes through to the backing store when supported and always
// refreshes the Redis copy.
func (r *BankRepository) SaveBank(ctx context.Context, bank domain.Bank) error {
	if saver, ok := r.loader.(BankSaver); ok {
		if err := saver.SaveBank(ctx, bank); err != nil {
			return err
		}
	}
	r.cacheBank(ctx, bank)
	return nil
}

func (r *BankRepository) fromCache(ctx context.Context, key, bankID string) (domain.Bank, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil (cache miss) and transport errors both fall through to
		// the loader.
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, false
	}
	bank.ID = bankID
	return bank, true
}

func (r *BankRepository) cacheBank(ctx context.Context, bank domain.Bank) {
	data, err := json.Marshal(bank)
	if err != nil {
		return
	}
	// best-effort: a failed cache write only costs a loader hit later
	_ = r.client.Set(ctx, r.docKey(bank.ID), data, r.ttlWithJitter()).Err()
}

func (r *BankRepository) docKey(bankID string) string {
	return "bank:" + bankID + ":doc"
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
