package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthbook/go-ledger-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRefreshCoordinator_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32

	entered, release := make(chan struct{}), make(chan struct{})

	c := ledger.NewRefreshCoordinator(func(context.Context) (ledger.Auth, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}

		<-release

		return ledger.Auth{AccessToken: "token"}, nil
	})

	const callers = 10

	var wg sync.WaitGroup

	tokens := make(chan string, callers)

	refresh := func() {
		defer wg.Done()

		auth, err := c.Refresh(context.Background())
		assert.NoError(t, err)

		tokens <- auth.AccessToken
	}

	// The first caller starts the refresh; the rest join while it is in flight.
	wg.Add(callers)

	go refresh()

	<-entered

	for i := 1; i < callers; i++ {
		go refresh()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	wg.Wait()
	close(tokens)

	for token := range tokens {
		require.Equal(t, "token", token)
	}

	// Everyone shared a single refresh.
	require.Equal(t, int32(1), calls.Load())

	// Once it settled, the next caller starts a new one.
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestRefreshCoordinator_SharedFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32

	entered, release := make(chan struct{}), make(chan struct{})

	c := ledger.NewRefreshCoordinator(func(context.Context) (ledger.Auth, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}

		<-release

		return ledger.Auth{}, errors.New("refresh rejected")
	})

	const callers = 5

	errs := make(chan error, callers)

	go func() {
		_, err := c.Refresh(context.Background())
		errs <- err
	}()

	<-entered

	for i := 1; i < callers; i++ {
		go func() {
			_, err := c.Refresh(context.Background())
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	// Every caller sees the one failure.
	for i := 0; i < callers; i++ {
		require.EqualError(t, <-errs, "refresh rejected")
	}

	require.Equal(t, int32(1), calls.Load())

	// A failure clears the in-flight marker too.
	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestRefreshCoordinator_CallerGivesUp(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered, release := make(chan struct{}), make(chan struct{})

	c := ledger.NewRefreshCoordinator(func(context.Context) (ledger.Auth, error) {
		close(entered)
		<-release

		return ledger.Auth{AccessToken: "token"}, nil
	})

	done := make(chan ledger.Auth)

	go func() {
		auth, err := c.Refresh(context.Background())
		assert.NoError(t, err)

		done <- auth
	}()

	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A caller whose context has ended stops waiting...
	_, err := c.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)

	// ...while the shared refresh still completes for the others.
	require.Equal(t, "token", (<-done).AccessToken)
}

func TestRefreshCoordinator_StarterGivesUp(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered, release := make(chan struct{}), make(chan struct{})

	c := ledger.NewRefreshCoordinator(func(ctx context.Context) (ledger.Auth, error) {
		close(entered)
		<-release

		if err := ctx.Err(); err != nil {
			return ledger.Auth{}, err
		}

		return ledger.Auth{AccessToken: "token"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gaveUp := make(chan error, 1)

	go func() {
		_, err := c.Refresh(ctx)
		gaveUp <- err
	}()

	<-entered

	done := make(chan ledger.Auth, 1)

	go func() {
		auth, err := c.Refresh(context.Background())
		assert.NoError(t, err)

		done <- auth
	}()

	time.Sleep(100 * time.Millisecond)

	// The caller that started the refresh leaves...
	cancel()
	require.ErrorIs(t, <-gaveUp, context.Canceled)

	close(release)

	// ...without cancelling it for the caller still waiting.
	require.Equal(t, "token", (<-done).AccessToken)
}
