package docnum

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySource struct {
	mu     sync.Mutex
	series map[string]int64
}

func newMemorySource() *memorySource {
	return &memorySource{series: make(map[string]int64)}
}

func (m *memorySource) NextValue(_ context.Context, prefix string, period int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefix + ":" + strconv.Itoa(period)
	m.series[key]++
	return m.series[key], nil
}

func TestNextFormatsNumber(t *testing.T) {
	svc := NewService(newMemorySource())
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }

	n, err := svc.Next(context.Background(), "GRN")
	require.NoError(t, err)
	require.Equal(t, "GRN-2026-000001", n)

	n, err = svc.Next(context.Background(), "GRN")
	require.NoError(t, err)
	require.Equal(t, "GRN-2026-000002", n)
}

func TestNextSeriesIndependentPerPrefix(t *testing.T) {
	svc := NewService(newMemorySource())
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }

	_, err := svc.Next(context.Background(), "GRN")
	require.NoError(t, err)

	n, err := svc.Next(context.Background(), "ISS")
	require.NoError(t, err)
	require.Equal(t, "ISS-2026-000001", n)
}

func TestNextSeriesRollsOverPerYear(t *testing.T) {
	src := newMemorySource()
	svc := NewService(src)

	svc.now = func() time.Time { return time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC) }
	n, err := svc.Next(context.Background(), "ADJ")
	require.NoError(t, err)
	require.Equal(t, "ADJ-2026-000001", n)

	svc.now = func() time.Time { return time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC) }
	n, err = svc.Next(context.Background(), "ADJ")
	require.NoError(t, err)
	require.Equal(t, "ADJ-2027-000001", n)
}

func TestNextConcurrentDrawsAreUnique(t *testing.T) {
	svc := NewService(newMemorySource())
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	const n = 50
	var wg sync.WaitGroup
	results := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(context.Background(), "TRF")
			if err != nil {
				errs <- err
				return
			}
			results <- num
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[string]bool)
	for num := range results {
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
}
