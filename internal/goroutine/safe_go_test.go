package goroutine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
	done chan struct{}
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
	l.mu.Unlock()
	close(l.done)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &recordingLogger{done: make(chan struct{})}
	rh := NewRecoveryHandler(log)

	rh.SafeGo(func() { panic("boom") })

	select {
	case <-log.done:
	case <-time.After(time.Second):
		t.Fatal("panic не был залогирован")
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.msgs, 1)
	assert.Contains(t, log.msgs[0], "boom")
}

func TestDetached_OutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	result := make(chan error, 1)
	Detached(parent, time.Second, func(ctx context.Context) {
		result <- ctx.Err()
	})

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("detached функция не запустилась")
	}
}
