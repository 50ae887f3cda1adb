package grading

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	key := CpmkLockKey(newScope(1, "2024/2025-ganjil"), uuid.New())

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
	assert.Zero(t, l.held(key), "idle keys are released")
}

func TestLocalLockerHonorsContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err, "distinct keys do not contend")
	other()

	unlock()
	assert.Zero(t, l.held("k"))
}

func TestLockKeys(t *testing.T) {
	student := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	cpmk := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	course := uuid.MustParse("00000000-0000-0000-0000-000000000003")
	scope := newScope(2, "2024/2025-genap")
	scope.StudentID = student

	assert.Equal(t, "cpmk:"+student.String()+":"+cpmk.String()+":2:2024/2025-genap", CpmkLockKey(scope, cpmk))
	assert.Equal(t, "cpl:"+student.String()+":"+cpmk.String()+":"+course.String()+":2:2024/2025-genap", CplLockKey(scope, cpmk, course))
}
