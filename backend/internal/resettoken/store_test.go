package resettoken

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open("", 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestDefaultTTL(t *testing.T) {
	s, err := Open("", 0, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 15*time.Minute, s.TTL())
}

func TestIssueAndConsume(t *testing.T) {
	s, _ := newTestStore(t)

	code, err := s.Issue("Profe@Escuela.mx")
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Regexp(t, "^[0-9a-f]{8}$", code)

	ok, err := s.Verify("profe@escuela.mx", code)
	require.NoError(t, err)
	assert.True(t, ok, "emails are matched case-insensitively")

	ok, err = s.Verify("profe@escuela.mx", "00000000")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Consume("profe@escuela.mx", code))
	assert.ErrorIs(t, s.Consume("profe@escuela.mx", code), ErrInvalidToken, "codes are single use")
}

func TestIssueReplacesEarlierCode(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.Issue("a@b.mx")
	require.NoError(t, err)
	second, err := s.Issue("a@b.mx")
	require.NoError(t, err)

	if first != second {
		ok, _ := s.Verify("a@b.mx", first)
		assert.False(t, ok)
	}
	ok, _ := s.Verify("a@b.mx", second)
	assert.True(t, ok)
}

func TestCodesExpire(t *testing.T) {
	s, clock := newTestStore(t)

	code, err := s.Issue("a@b.mx")
	require.NoError(t, err)

	*clock = clock.Add(14 * time.Minute)
	ok, _ := s.Verify("a@b.mx", code)
	assert.True(t, ok)

	*clock = clock.Add(time.Minute)
	ok, _ = s.Verify("a@b.mx", code)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Consume("a@b.mx", code), ErrInvalidToken)
}

func TestUnknownEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ok, err := s.Verify("nadie@b.mx", "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Consume("nadie@b.mx", "deadbeef"), ErrInvalidToken)
}

func TestConsumeWrongCodeKeepsLiveCode(t *testing.T) {
	s, _ := newTestStore(t)

	code, err := s.Issue("a@b.mx")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Consume("a@b.mx", "zzzzzzzz"), ErrInvalidToken)
	require.NoError(t, s.Consume("a@b.mx", code))
}

func TestConsumeConcurrent(t *testing.T) {
	s, _ := newTestStore(t)

	code, err := s.Issue("a@b.mx")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume("a@b.mx", code) == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	ok, _ := s.Verify("a@b.mx", code)
	assert.False(t, ok)
}
