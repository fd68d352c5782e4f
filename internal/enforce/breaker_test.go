package enforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func observed(b *Breaker, code, hash string) Violation {
	v := Violation{Code: code, Hash: hash, Severity: SeverityError, FixHint: "update the caller"}
	b.Observe(&v)
	return v
}

func TestBreaker_EscalationLadder(t *testing.T) {
	b := NewBreaker(3, true)

	first := observed(b, CodeBrokenCaller, "abc")
	assert.Equal(t, SeverityError, first.Severity)
	assert.Equal(t, "update the caller", first.FixHint, "first failure keeps the check's hint")

	second := observed(b, CodeBrokenCaller, "abc")
	assert.Equal(t, SeverityError, second.Severity)
	assert.Contains(t, second.FixHint, "Widen the inspection")

	third := observed(b, CodeBrokenCaller, "abc")
	assert.Equal(t, SeverityWarning, third.Severity, "third consecutive failure auto-downgrades")
	assert.Contains(t, third.FixHint, "3 consecutive fix attempts")
	assert.Contains(t, third.FixHint, "resolution confidence and tier")
	assert.Contains(t, third.FixHint, "root cause")
}

func TestBreaker_TickOncePerEvaluation(t *testing.T) {
	b := NewBreaker(3, true)

	// Two findings in one evaluation share the count from a single tick.
	n := b.Tick(CodeArityMismatch, "abc")
	assert.Equal(t, 1, n)
	one := Violation{Code: CodeArityMismatch, Hash: "abc", Severity: SeverityError, FixHint: "fix the call"}
	two := one
	b.Escalate(&one, n)
	b.Escalate(&two, n)
	assert.Equal(t, "fix the call", one.FixHint)
	assert.Equal(t, "fix the call", two.FixHint)
	assert.Equal(t, 1, b.Count(CodeArityMismatch, "abc"))
}

func TestBreaker_NoDowngradeWhenDisabled(t *testing.T) {
	b := NewBreaker(3, false)
	observed(b, CodeBrokenCaller, "abc")
	observed(b, CodeBrokenCaller, "abc")
	third := observed(b, CodeBrokenCaller, "abc")
	assert.Equal(t, SeverityError, third.Severity)
	assert.Contains(t, third.FixHint, "consecutive fix attempts")
}

func TestBreaker_CodesCountIndependently(t *testing.T) {
	b := NewBreaker(3, true)
	observed(b, CodeBrokenCaller, "abc")
	observed(b, CodeBrokenCaller, "abc")
	arity := observed(b, CodeArityMismatch, "abc")
	assert.Equal(t, "update the caller", arity.FixHint, "a different code at the same hash starts fresh")
}

func TestBreaker_ResolveResets(t *testing.T) {
	b := NewBreaker(3, true)
	observed(b, CodeBrokenCaller, "abc")
	observed(b, CodeBrokenCaller, "abc")
	b.Resolve(CodeBrokenCaller, "abc")
	assert.Zero(t, b.Count(CodeBrokenCaller, "abc"))

	again := observed(b, CodeBrokenCaller, "abc")
	assert.Equal(t, "update the caller", again.FixHint)
}

func TestBreaker_MigrateCarriesCountAcrossRewrite(t *testing.T) {
	b := NewBreaker(3, true)
	observed(b, CodeBrokenCaller, "old")
	observed(b, CodeBrokenCaller, "old")

	b.Migrate("old", "new")
	assert.Zero(t, b.Count(CodeBrokenCaller, "old"))
	assert.Equal(t, 2, b.Count(CodeBrokenCaller, "new"))

	third := observed(b, CodeBrokenCaller, "new")
	assert.Equal(t, SeverityWarning, third.Severity)
}

func TestBreaker_FrozenCodeDoesNotCount(t *testing.T) {
	b := NewBreaker(3, true)
	b.Freeze(CodeMissingDocstring)
	observed(b, CodeMissingDocstring, "abc")
	observed(b, CodeMissingDocstring, "abc")
	assert.Zero(t, b.Count(CodeMissingDocstring, "abc"))

	b.Thaw(CodeMissingDocstring)
	observed(b, CodeMissingDocstring, "abc")
	assert.Equal(t, 1, b.Count(CodeMissingDocstring, "abc"))
}
