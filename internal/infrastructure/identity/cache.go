package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/goroutine"
)

type cacheEntry struct {
	status    valueobject.KYCStatus
	expiresAt time.Time
}

// CachingVerifier запоминает подтверждённые статусы, чтобы не ходить в
// сервис верификации на каждую оплату. Остальные статусы не кешируются:
// пользователь может пройти проверку в любой момент.
type CachingVerifier struct {
	next  gateway.IdentityVerifier
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
}

func NewCachingVerifier(next gateway.IdentityVerifier, ttl time.Duration) *CachingVerifier {
	return &CachingVerifier{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[uuid.UUID]cacheEntry),
	}
}

func (v *CachingVerifier) Status(ctx context.Context, userID uuid.UUID) (valueobject.KYCStatus, error) {
	v.mu.RLock()
	entry, ok := v.cache[userID]
	v.mu.RUnlock()
	if ok && v.now().Before(entry.expiresAt) {
		return entry.status, nil
	}

	status, err := v.next.Status(ctx, userID)
	if err != nil {
		return "", err
	}
	if status == valueobject.KYCStatusApproved {
		v.mu.Lock()
		v.cache[userID] = cacheEntry{status: status, expiresAt: v.now().Add(v.ttl)}
		v.mu.Unlock()
	}
	return status, nil
}

// Invalidate сбрасывает статус пользователя, например после отзыва верификации.
func (v *CachingVerifier) Invalidate(userID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cache, userID)
}

// StartCleanup удаляет протухшие записи до отмены ctx.
func (v *CachingVerifier) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v.cleanup()
			}
		}
	})
}

func (v *CachingVerifier) cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	for id, entry := range v.cache {
		if !now.Before(entry.expiresAt) {
			delete(v.cache, id)
		}
	}
}
