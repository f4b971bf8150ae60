package middleware

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SendLimiter throttles message sends per authenticated user. Stale entries
// are swept so long-running servers do not accumulate one limiter per user
// that ever connected.
type SendLimiter struct {
	senders sync.Map
	rps     rate.Limit
	burst   int
	log     *zap.Logger
}

type sender struct {
	limiter *rate.Limiter
	// lastSeen is a UnixNano read by the sweeper while sends update it.
	lastSeen atomic.Int64
}

func NewSendLimiter(perMinute int, logger *zap.Logger) *SendLimiter {
	l := &SendLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: 5,
		log:   logger,
	}
	go l.cleanupSenders()
	return l
}

// Allow reports whether userID may send another message now.
func (l *SendLimiter) Allow(userID uuid.UUID) bool {
	lim := l.getLimiter(userID)
	if !lim.Allow() {
		l.log.Warn("send rate limit exceeded", zap.String("user_id", userID.String()))
		return false
	}
	return true
}

func (l *SendLimiter) getLimiter(userID uuid.UUID) *rate.Limiter {
	fresh := &sender{limiter: rate.NewLimiter(l.rps, l.burst)}
	v, _ := l.senders.LoadOrStore(userID, fresh)
	s := v.(*sender)
	s.lastSeen.Store(time.Now().UnixNano())
	return s.limiter
}

func (l *SendLimiter) cleanupSenders() {
	for {
		time.Sleep(time.Minute)
		l.sweep(time.Now().Add(-5 * time.Minute))
	}
}

// sweep drops senders not seen since cutoff.
func (l *SendLimiter) sweep(cutoff time.Time) {
	l.senders.Range(func(k, v interface{}) bool {
		s := v.(*sender)
		if s.lastSeen.Load() < cutoff.UnixNano() {
			l.senders.Delete(k)
		}
		return true
	})
}
