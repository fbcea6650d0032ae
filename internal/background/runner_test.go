package background

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type outcomes struct {
	mu   sync.Mutex
	errs map[string]error
}

func (o *outcomes) observe(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[name] = err
}

func (o *outcomes) get(name string) (error, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	err, ok := o.errs[name]
	return err, ok
}

func TestRunnerReportsOutcomes(t *testing.T) {
	o := &outcomes{errs: map[string]error{}}
	r := New(zerolog.Nop(), time.Second, WithObserver(o.observe))

	r.Go("ok", func(ctx context.Context) error { return nil })
	r.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	r.Go("panics", func(ctx context.Context) error { panic("kaboom") })

	require.NoError(t, r.Shutdown(context.Background()))

	err, ok := o.get("ok")
	require.True(t, ok)
	assert.NoError(t, err)
	err, _ = o.get("fails")
	assert.EqualError(t, err, "boom")
	err, _ = o.get("panics")
	assert.ErrorContains(t, err, "kaboom")
}

func TestRunnerOutlivesSpawningRequest(t *testing.T) {
	r := New(zerolog.Nop(), time.Second)

	started := make(chan struct{})
	var taskErr error
	func() {
		reqCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_ = reqCtx
		r.Go("orphan", func(ctx context.Context) error {
			close(started)
			time.Sleep(10 * time.Millisecond)
			taskErr = ctx.Err()
			return nil
		})
	}()
	<-started

	require.NoError(t, r.Shutdown(context.Background()))
	assert.NoError(t, taskErr)
}

func TestRunnerAppliesTimeout(t *testing.T) {
	o := &outcomes{errs: map[string]error{}}
	r := New(zerolog.Nop(), 5*time.Millisecond, WithObserver(o.observe))
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, r.Shutdown(context.Background()))
	err, _ := o.get("slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunnerRejectsAfterShutdown(t *testing.T) {
	o := &outcomes{errs: map[string]error{}}
	r := New(zerolog.Nop(), time.Second, WithObserver(o.observe))
	require.NoError(t, r.Shutdown(context.Background()))

	r.Go("late", func(ctx context.Context) error { return nil })
	err, ok := o.get("late")
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdownHonoursDeadline(t *testing.T) {
	r := New(zerolog.Nop(), time.Second)
	release := make(chan struct{})
	r.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.Error(t, r.Shutdown(ctx))
	close(release)
	require.NoError(t, r.Shutdown(context.Background()))
}
