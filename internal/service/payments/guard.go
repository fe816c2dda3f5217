package payments

import (
	"sync"
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// defaultReleaseDelay — окно, в течение которого токен остаётся занятым после
// завершения попытки. Поглощает почти одновременные дубли от браузера и шлюза.
const defaultReleaseDelay = 2 * time.Second

// TokenGuard сериализует попытки подтверждения по токену в пределах процесса.
// Это страховка от двойной отправки, а не распределённая блокировка:
// арбитром эксклюзивности между процессами остаётся база данных.
type TokenGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	delay    time.Duration
}

// NewTokenGuard создаёт guard со стандартной задержкой освобождения.
func NewTokenGuard() *TokenGuard {
	return NewTokenGuardWithDelay(defaultReleaseDelay)
}

// NewTokenGuardWithDelay создаёт guard с заданной задержкой (для тестов).
func NewTokenGuardWithDelay(delay time.Duration) *TokenGuard {
	return &TokenGuard{
		inFlight: make(map[string]struct{}),
		delay:    delay,
	}
}

// Acquire помечает токен как обрабатываемый. Повторный захват до освобождения
// возвращает ErrTokenInFlight.
func (g *TokenGuard) Acquire(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[token]; busy {
		return domain.ErrTokenInFlight
	}
	g.inFlight[token] = struct{}{}
	return nil
}

// Release планирует освобождение токена после задержки.
func (g *TokenGuard) Release(token string) {
	if g.delay <= 0 {
		g.remove(token)
		return
	}
	time.AfterFunc(g.delay, func() {
		g.remove(token)
	})
}

func (g *TokenGuard) remove(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, token)
}

// InFlight сообщает, занят ли токен в данный момент.
func (g *TokenGuard) InFlight(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[token]
	return busy
}
