package enforce

import (
	"fmt"
	"sync"
)

type breakerKey struct {
	code string
	hash string
}

// Breaker tracks consecutive failures per (code, hash) pair across one
// session. Counters are keyed by the exact hash, so the same error code
// at a rewritten function starts a fresh count.
type Breaker struct {
	mu         sync.Mutex
	counts     map[breakerKey]int
	maxRetries int
	downgrade  bool
	frozen     map[string]bool
}

func NewBreaker(maxRetries int, downgrade bool) *Breaker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Breaker{
		counts:     make(map[breakerKey]int),
		maxRetries: maxRetries,
		downgrade:  downgrade,
		frozen:     make(map[string]bool),
	}
}

// Freeze stops counting for a code while a batch defers it; Thaw
// resumes. A frozen code neither increments nor escalates.
func (b *Breaker) Freeze(code string) {
	b.mu.Lock()
	b.frozen[code] = true
	b.mu.Unlock()
}

func (b *Breaker) Thaw(code string) {
	b.mu.Lock()
	delete(b.frozen, code)
	b.mu.Unlock()
}

// Tick records one recurrence of a (code, hash) pair and returns the
// updated consecutive-failure count, zero when the code is frozen.
// A caller evaluating a whole change set ticks each pair once and
// applies Escalate to every matching violation, so repeats within a
// single compile consume one ladder step.
func (b *Breaker) Tick(code, hash string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen[code] {
		return 0
	}
	key := breakerKey{code: code, hash: hash}
	b.counts[key]++
	return b.counts[key]
}

// Escalate rewrites a violation's fix hint, and possibly severity,
// according to ladder position n. Zero leaves the violation untouched.
func (b *Breaker) Escalate(v *Violation, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case n <= 0:
	case n >= b.maxRetries:
		if b.downgrade && v.Severity == SeverityError {
			v.Severity = SeverityWarning
		}
		v.FixHint = fmt.Sprintf(
			"%s has failed %d consecutive fix attempts. Stop editing this function. Inspect how it is invoked end to end, run explain on this finding and check the resolution confidence and tier behind the reported edges, and address the root cause before retrying.",
			v.Code, n)
	case n == b.maxRetries-1:
		v.FixHint = fmt.Sprintf(
			"%s was reported here before and the previous fix did not hold. Widen the inspection: read the callers listed under affected and the surrounding file before changing the function again.",
			v.Code)
	default:
		// first occurrence keeps the check's own hint
	}
}

// Observe is Tick followed by Escalate for a lone occurrence.
func (b *Breaker) Observe(v *Violation) {
	b.Escalate(v, b.Tick(v.Code, v.Hash))
}

// Migrate carries every counter on oldHash over to newHash. Rewriting
// a function changes its hash, and a failed fix attempt must not start
// the ladder over.
func (b *Breaker) Migrate(oldHash, newHash string) {
	if oldHash == "" || oldHash == newHash {
		return
	}
	b.mu.Lock()
	for key, n := range b.counts {
		if key.hash == oldHash {
			delete(b.counts, key)
			b.counts[breakerKey{code: key.code, hash: newHash}] = n
		}
	}
	b.mu.Unlock()
}

// Resolve clears the counter for a pair once a compile passes without
// reporting it.
func (b *Breaker) Resolve(code, hash string) {
	b.mu.Lock()
	delete(b.counts, breakerKey{code: code, hash: hash})
	b.mu.Unlock()
}

// Count reports the current consecutive-failure count for a pair.
func (b *Breaker) Count(code, hash string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[breakerKey{code: code, hash: hash}]
}
