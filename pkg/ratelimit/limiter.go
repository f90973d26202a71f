package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter - Token Bucket rate limiter
//
// Алгоритм Token Bucket:
// - Ведро наполняется токенами с постоянной скоростью (rate токенов/сек)
// - Максимальная ёмкость ведра = burst (позволяет короткие всплески)
// - Каждый запрос потребляет 1 токен
// - Если токенов нет, запрос отклоняется
//
// Здесь используется для защиты логина от перебора паролей:
// допускаем burst попыток, дальше по rate в секунду.
type RateLimiter struct {
	rate       float64   // токенов в секунду
	burst      float64   // максимальная ёмкость (burst capacity)
	tokens     float64   // текущее количество токенов
	lastRefill time.Time // время последнего пополнения
	mu         sync.Mutex
}

// NewRateLimiter создаёт новый rate limiter
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // начинаем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены на основе прошедшего времени
// ВАЖНО: вызывается под lock'ом
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Allow проверяет доступность токена без блокировки
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Tokens возвращает текущее количество доступных токенов
// Полезно для мониторинга и отладки
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения токенов (токенов/сек)
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst возвращает максимальную ёмкость (burst capacity)
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}

// ============================================================
// KeyedLimiter - независимый лимит для каждого ключа (IP, email)
// ============================================================

// keyedEntry хранит limiter и время последнего использования
type keyedEntry struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// KeyedLimiter управляет набором rate limiters, по одному на ключ.
// Неактивные ключи удаляются чтобы map не рос бесконечно.
type KeyedLimiter struct {
	rate    float64
	burst   float64
	maxIdle time.Duration

	entries map[string]*keyedEntry
	mu      sync.Mutex

	lastCleanup time.Time
}

// NewKeyedLimiter создаёт KeyedLimiter
//
// Параметры:
//   - rate, burst: параметры каждого per-key ведра
//   - maxIdle: сколько держать неактивный ключ (0 = 15 минут)
func NewKeyedLimiter(rate, burst float64, maxIdle time.Duration) *KeyedLimiter {
	if maxIdle <= 0 {
		maxIdle = 15 * time.Minute
	}
	return &KeyedLimiter{
		rate:        rate,
		burst:       burst,
		maxIdle:     maxIdle,
		entries:     make(map[string]*keyedEntry),
		lastCleanup: time.Now(),
	}
}

// Allow проверяет доступность токена для ключа
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()

	// Периодическая очистка неактивных ключей
	if time.Since(kl.lastCleanup) > kl.maxIdle {
		for k, e := range kl.entries {
			if time.Since(e.lastSeen) > kl.maxIdle {
				delete(kl.entries, k)
			}
		}
		kl.lastCleanup = time.Now()
	}

	entry, ok := kl.entries[key]
	if !ok {
		entry = &keyedEntry{limiter: NewRateLimiter(kl.rate, kl.burst)}
		kl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	kl.mu.Unlock()

	return entry.limiter.Allow()
}

// Len возвращает количество отслеживаемых ключей
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}
