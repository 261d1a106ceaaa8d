package reference

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrExhausted is returned when the collision retry budget is spent. A
// donation hitting this is fatal for the request and needs operator eyes.
var ErrExhausted = errors.New("reference number retry budget exhausted")

// MaxCollisionRetries bounds the -NN suffix space.
const MaxCollisionRetries = 99

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Clock supplies the timestamp component. Injected for testability.
type Clock interface {
	Now() time.Time
}

// TokenSource supplies the random tail. Injected for testability.
type TokenSource interface {
	Intn(n int) int
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Generator mints human-readable donation references of the shape
// PREFIX-YYYY-HHMMSS-XXX where XXX is a 3-character base36 token.
type Generator struct {
	prefix string
	clock  Clock
	rng    TokenSource
}

func NewGenerator(prefix string, clock Clock, rng TokenSource) *Generator {
	if clock == nil {
		clock = systemClock{}
	}
	if rng == nil {
		rng = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	return &Generator{prefix: prefix, clock: clock, rng: rng}
}

// Next produces a fresh candidate reference. Uniqueness is enforced by the
// database index; callers retry with Alternate on collision.
func (g *Generator) Next() string {
	now := g.clock.Now()
	token := make([]byte, 3)
	for i := range token {
		token[i] = base36Alphabet[g.rng.Intn(len(base36Alphabet))]
	}
	return fmt.Sprintf("%s-%s-%s-%s", g.prefix, now.Format("2006"), now.Format("150405"), token)
}

// Alternate derives the attempt'th collision fallback for a base reference,
// appending -NN with NN starting at 01. Attempts past the budget return
// ErrExhausted.
func (g *Generator) Alternate(base string, attempt int) (string, error) {
	if attempt < 1 || attempt > MaxCollisionRetries {
		return "", ErrExhausted
	}
	return fmt.Sprintf("%s-%02d", base, attempt), nil
}
