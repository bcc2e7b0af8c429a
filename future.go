package ledger

import "github.com/ProtonMail/gluon/async"

// Future runs fn in the background and hands its result to whoever asks for it.
type Future[T any] struct {
	resCh        chan res[T]
	panicHandler async.PanicHandler
}

type res[T any] struct {
	val T
	err error
}

func NewFuture[T any](panicHandler async.PanicHandler, fn func() (T, error)) *Future[T] {
	resCh := make(chan res[T], 1)
	job := &Future[T]{
		resCh:        resCh,
		panicHandler: panicHandler,
	}

	go func() {
		defer job.handlePanic()

		val, err := fn()

		resCh <- res[T]{val: val, err: err}
	}()

	return job
}

// Then calls fn with the result once it is available, without blocking the caller.
func (job *Future[T]) Then(fn func(T, error)) {
	go func() {
		defer job.handlePanic()

		res := <-job.resCh

		fn(res.val, res.err)
	}()
}

func (job *Future[T]) Get() (T, error) {
	res := <-job.resCh

	return res.val, res.err
}

func (job *Future[T]) handlePanic() {
	if job.panicHandler != nil {
		job.panicHandler.HandlePanic()
	}
}
