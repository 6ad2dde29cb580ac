package auth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codeEmail = "alice@example.com"

func TestCodeStore_IssueStoresOnlyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)
	require.Len(t, code, 6)
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)

	record, err := f.codes.Get(ctx, codeEmail)
	require.NoError(t, err)
	assert.NotEqual(t, code, record.CodeHash)
	assert.True(t, f.hasher.Verify(code, record.CodeHash))
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), record.ExpiresAt)
	assert.Equal(t, f.clock.Now(), record.LastSentAt)
	assert.Zero(t, record.Attempts)
}

func TestCodeStore_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	result, err := f.store.Verify(ctx, codeEmail, code)
	require.NoError(t, err)
	assert.Equal(t, CodeVerified, result)

	result, err = f.store.Verify(ctx, codeEmail, code)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, result)
}

func TestCodeStore_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)

	result, err := f.store.Verify(ctx, codeEmail, code)
	require.NoError(t, err)
	assert.Equal(t, CodeExpired, result)
	assert.Zero(t, f.codes.len(), "expired record is deleted on detection")

	result, err = f.store.Verify(ctx, codeEmail, code)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, result)
}

func TestCodeStore_Cooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	tests := []struct {
		name    string
		advance time.Duration
		want    string
	}{
		{name: "immediately", advance: 0, want: "60s"},
		{name: "after 15s", advance: 15 * time.Second, want: "45s"},
		{name: "fractional second rounds up", advance: 44*time.Second + 500*time.Millisecond, want: "1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Advance(tt.advance)

			_, err := f.store.Issue(ctx, codeEmail)
			e := requireKind(t, err, KindRateLimit)
			assert.Contains(t, e.Message, "try again in "+tt.want)
		})
	}

	// 59.5s elapsed so far
	f.clock.Advance(500 * time.Millisecond)
	_, err = f.store.Issue(ctx, codeEmail)
	assert.NoError(t, err)
}

func TestCodeStore_CooldownRetryAfter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Second)

	_, err = f.store.Issue(ctx, codeEmail)
	e := requireKind(t, err, KindRateLimit)
	assert.Equal(t, 40*time.Second, e.RetryAfter)
}

func TestCodeStore_ResendReplacesPreviousCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, f.codes.len())

	if first != second {
		result, err := f.store.Verify(ctx, codeEmail, first)
		require.NoError(t, err)
		assert.Equal(t, CodeMismatch, result)
	}

	result, err := f.store.Verify(ctx, codeEmail, second)
	require.NoError(t, err)
	assert.Equal(t, CodeVerified, result)
}

func TestCodeStore_ExpiredRecordSkipsCooldown(t *testing.T) {
	f := newFixture(t)
	f.store.cooldown = 10 * time.Minute
	ctx := context.Background()

	_, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	_, err = f.store.Issue(ctx, codeEmail)
	assert.NoError(t, err)
}

func TestCodeStore_MismatchCountsAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)
	wrong := wrongCode(code)

	for i := 1; i < f.cfg.CodeMaxAttempts; i++ {
		result, err := f.store.Verify(ctx, codeEmail, wrong)
		require.NoError(t, err)
		assert.Equal(t, CodeMismatch, result)

		record, err := f.codes.Get(ctx, codeEmail)
		require.NoError(t, err)
		assert.Equal(t, i, record.Attempts)
	}

	result, err := f.store.Verify(ctx, codeEmail, wrong)
	require.NoError(t, err)
	assert.Equal(t, CodeLocked, result)

	// locked codes are gone, even the correct one
	result, err = f.store.Verify(ctx, codeEmail, code)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, result)
}

func TestCodeStore_ConcurrentVerifySingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	const workers = 8
	results := make(chan CodeResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.store.Verify(ctx, codeEmail, code)
			assert.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	verified := 0
	for r := range results {
		if r == CodeVerified {
			verified++
		} else {
			assert.Equal(t, CodeNotFound, r)
		}
	}
	assert.Equal(t, 1, verified)
}

func TestCodeStore_Discard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Issue(ctx, codeEmail)
	require.NoError(t, err)

	require.NoError(t, f.store.Discard(ctx, codeEmail))
	require.NoError(t, f.store.Discard(ctx, codeEmail), "discarding twice is fine")

	// no cooldown left behind
	_, err = f.store.Issue(ctx, codeEmail)
	assert.NoError(t, err)
}

func TestCodeResult_String(t *testing.T) {
	assert.Equal(t, "verified", CodeVerified.String())
	assert.Equal(t, "locked", CodeLocked.String())
	assert.Equal(t, "unknown", CodeResult(99).String())
}

func wrongCode(code string) string {
	if code == "999999" {
		return "999998"
	}
	n, _ := strconv.Atoi(code)
	return strconv.Itoa(n + 1)
}
