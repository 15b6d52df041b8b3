package openai

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// RetryPolicy describes how a single BatchEmbed call reacts to provider pushback.
// 429/503 answers sleep for the current wait, then multiply it by Factor.
// 400 answers shrink every text to TruncatePercent of the longest one and
// retry at once. The loop gives up after MaxAttempts requests.
type RetryPolicy struct {
	InitialWait     time.Duration
	Factor          int
	MaxWait         time.Duration // 0 = unbounded
	MaxAttempts     int
	TruncatePercent int
}

// DefaultRetryPolicy returns 2s doubling waits, 100 attempts and 80% truncation.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialWait:     2 * time.Second,
		Factor:          2,
		MaxAttempts:     100,
		TruncatePercent: 80,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.InitialWait <= 0 {
		p.InitialWait = def.InitialWait
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.TruncatePercent <= 0 || p.TruncatePercent >= 100 {
		p.TruncatePercent = def.TruncatePercent
	}
	if p.MaxWait < 0 {
		p.MaxWait = 0
	}
	return p
}

// NextWait returns the wait that follows current. It saturates instead of
// overflowing time.Duration and honours MaxWait when set.
func (p RetryPolicy) NextWait(current time.Duration) time.Duration {
	next := time.Duration(math.MaxInt64)
	if current <= time.Duration(math.MaxInt64)/time.Duration(p.Factor) {
		next = current * time.Duration(p.Factor)
	}
	if p.MaxWait > 0 && next > p.MaxWait {
		return p.MaxWait
	}
	return next
}

// CutAt returns the length every text is truncated to after a 400 answer.
func (p RetryPolicy) CutAt(maxLength int) int {
	return maxLength * p.TruncatePercent / 100
}

// Sleeper blocks for the backoff duration. Tests swap in a recording fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	}
}

// retryState is the transient state of one BatchEmbed call.
type retryState struct {
	policy  RetryPolicy
	wait    time.Duration
	attempt int
	texts   []string
}

func newRetryState(policy RetryPolicy, texts []string) *retryState {
	return &retryState{
		policy: policy,
		wait:   policy.InitialWait,
		texts:  append([]string(nil), texts...),
	}
}

// next starts a new attempt; false once MaxAttempts is spent.
func (s *retryState) next() bool {
	if s.attempt >= s.policy.MaxAttempts {
		return false
	}
	s.attempt++
	return true
}

func (s *retryState) last() bool { return s.attempt >= s.policy.MaxAttempts }

// backoff returns the wait for this retry and grows the next one.
func (s *retryState) backoff() time.Duration {
	wait := s.wait
	s.wait = s.policy.NextWait(s.wait)
	return wait
}

// truncate shrinks every text to CutAt(longest) runes. Truncation persists
// for the rest of the call.
func (s *retryState) truncate() (maxLength, cutAt int) {
	maxLength = longest(s.texts)
	cutAt = s.policy.CutAt(maxLength)
	for i, t := range s.texts {
		s.texts[i] = truncateRunes(t, cutAt)
	}
	return maxLength, cutAt
}

// longest returns the character length of the longest text.
func longest(texts []string) int {
	maxLength := 0
	for _, t := range texts {
		if n := utf8.RuneCountInString(t); n > maxLength {
			maxLength = n
		}
	}
	return maxLength
}

// truncateRunes cuts s to at most n characters without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
