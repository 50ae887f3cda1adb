package grading

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	types "github.com/yungbote/obe-backend/internal/domain"
)

// KeyLocker is a per-key single-flight guard. unlock must be called exactly
// once when err is nil.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func CpmkLockKey(scope types.Scope, cpmkID uuid.UUID) string {
	return fmt.Sprintf("cpmk:%s:%s:%d:%s", scope.StudentID, cpmkID, scope.Semester, scope.AcademicTerm)
}

func CplLockKey(scope types.Scope, cplID, courseID uuid.UUID) string {
	return fmt.Sprintf("cpl:%s:%s:%s:%d:%s", scope.StudentID, cplID, courseID, scope.Semester, scope.AcademicTerm)
}

// LocalLocker serializes holders of the same key inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localKey
}

type localKey struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: map[string]*localKey{}}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	k, ok := l.keys[key]
	if !ok {
		k = &localKey{ch: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.release(key, k)
		})
	}, nil
}

func (l *LocalLocker) release(key string, k *localKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// held reports how many callers currently hold or wait on key.
func (l *LocalLocker) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if k, ok := l.keys[key]; ok {
		return k.refs
	}
	return 0
}
