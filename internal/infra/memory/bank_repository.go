package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"practice-test-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// BankLoader fetches question banks from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankSaver persists uploaded banks. Optional: loaders without it keep
// uploads cache-only.
type BankSaver interface {
	SaveBank(ctx context.Context, bank domain.Bank) error
}

// BankRepository caches banks with TTL to avoid repeated backing-store hits.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[bankID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.bank, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[bankID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.bank, nil
		}
		r.mu.RUnlock()

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		r.mu.Lock()
		r.cache[bankID] = cachedBank{
			bank:      bank,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

// SaveBank stores an already-validated bank. Writes go to the backing store
// when the loader supports it, and always refresh the cache so the bank is
// available immediately.
func (r *BankRepository) SaveBank(ctx context.Context, bank domain.Bank) error {
	if saver, ok := r.loader.(BankSaver); ok {
		if err := saver.SaveBank(ctx, bank); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.cache[bank.ID] = cachedBank{
		bank:      bank,
		expiresAt: r.clock().Add(r.ttlWithJitter()),
	}
	r.mu.Unlock()
	return nil
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for
// tests and the embedded default bank).
type StaticBankLoader struct {
	mu    sync.RWMutex
	banks map[string]domain.Bank
}

func NewStaticBankLoader(banks map[string]domain.Bank) *StaticBankLoader {
	if banks == nil {
		banks = make(map[string]domain.Bank)
	}
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bank, ok := l.banks[bankID]; ok {
		return bank, nil
	}
	return domain.Bank{}, domain.ErrBankNotFound
}

func (l *StaticBankLoader) SaveBank(_ context.Context, bank domain.Bank) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.banks[bank.ID] = bank
	return nil
}
