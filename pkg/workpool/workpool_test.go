package workpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowsVisitsEveryRowOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		seen := make([]int32, 37)
		Rows(len(seen), workers, func(y int) {
			atomic.AddInt32(&seen[y], 1)
		}, nil)

		for y, n := range seen {
			assert.Equalf(t, int32(1), n, "workers=%d row=%d", workers, y)
		}
	}
}

func TestRowsProgress(t *testing.T) {
	var calls, last int64
	Rows(10, 1, func(int) {}, func(done, total int) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, 10, total)
		if int64(done) > atomic.LoadInt64(&last) {
			atomic.StoreInt64(&last, int64(done))
		}
	})
	assert.Equal(t, int64(10), calls)
	assert.Equal(t, int64(10), last)
}

func TestRowsEmpty(t *testing.T) {
	Rows(0, 4, func(int) { t.Fatal("should not be called") }, nil)
}

func TestEveryN(t *testing.T) {
	got := []int{}
	f := EveryN(4, func(done, total int) { got = append(got, done) })
	for i := 1; i <= 10; i++ {
		f(i, 10)
	}
	assert.Equal(t, []int{4, 8, 10}, got)
}
