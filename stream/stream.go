// Package stream provides a lazy, single-consumption asynchronous sequence
// with a small set of combinators. A Stream is a linear resource: consuming
// it — by iteration, by ToArray, or through a derived stream — claims the
// underlying cursor exactly once, and every later attempt fails with
// ErrConsumed.
package stream

import (
	"context"
	"iter"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConsumed is returned when a stream is consumed a second time, or
	// when a combinator is chained onto an already consumed stream.
	ErrConsumed = errors.New("query stream already consumed")

	// ErrDone signals exhaustion of the producer. Producers return it from
	// Next; consumers never observe it.
	ErrDone = errors.New("no more items in stream")
)

// Next pulls the next item from the producer. It returns ErrDone after the
// last item.
type Next[T any] func(ctx context.Context) (T, error)

// Open starts the producer. It is invoked at most once, when the stream is
// first consumed. The returned close function releases the producer's
// resources and is invoked on exhaustion, early termination, and error.
type Open[T any] func(ctx context.Context) (Next[T], func(ctx context.Context) error, error)

// Stream is a lazy single-consumption sequence of T.
type Stream[T any] struct {
	mu       sync.Mutex
	consumed bool
	open     Open[T]
}

// New builds a stream from an Open function.
func New[T any](open Open[T]) *Stream[T] {
	return &Stream[T]{open: open}
}

// Of builds a stream over a fixed slice. Mostly useful in tests.
func Of[T any](items ...T) *Stream[T] {
	return New(func(context.Context) (Next[T], func(context.Context) error, error) {
		i := 0
		next := func(context.Context) (T, error) {
			if i >= len(items) {
				var zero T
				return zero, ErrDone
			}
			v := items[i]
			i++
			return v, nil
		}
		return next, func(context.Context) error { return nil }, nil
	})
}

// Fail builds a stream that fails with err on consumption.
func Fail[T any](err error) *Stream[T] {
	return New(func(context.Context) (Next[T], func(context.Context) error, error) {
		return nil, nil, err
	})
}

// Consumed reports whether the stream has been claimed.
func (s *Stream[T]) Consumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// acquire claims the stream and starts the producer. Claiming an already
// consumed stream fails with ErrConsumed.
func (s *Stream[T]) acquire(ctx context.Context) (Next[T], func(ctx context.Context) error, error) {
	s.mu.Lock()
	if s.consumed {
		s.mu.Unlock()
		return nil, nil, errors.WithStack(ErrConsumed)
	}
	s.consumed = true
	s.mu.Unlock()
	return s.open(ctx)
}

// ToArray consumes the stream eagerly. Items delivered before a producer
// error are returned alongside the error.
func (s *Stream[T]) ToArray(ctx context.Context) ([]T, error) {
	next, closer, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer(ctx) }()

	var out []T
	for {
		v, err := next(ctx)
		if err != nil {
			if errors.Is(err, ErrDone) {
				return out, nil
			}
			return out, err
		}
		out = append(out, v)
	}
}

// Seq consumes the stream as a range-over-func sequence. The second value
// carries a producer error; iteration stops after yielding it. The
// underlying cursor is closed on exhaustion, on early break, and on error.
func (s *Stream[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		next, closer, err := s.acquire(ctx)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		defer func() { _ = closer(ctx) }()

		for {
			v, err := next(ctx)
			if err != nil {
				if errors.Is(err, ErrDone) {
					return
				}
				var zero T
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Take yields the first n items. n <= 0 yields no items. The derived stream
// takes ownership of s: whichever derived stream is consumed first claims
// the base; the rest fail with ErrConsumed.
func (s *Stream[T]) Take(n int) *Stream[T] {
	if s.Consumed() {
		return Fail[T](errors.WithStack(ErrConsumed))
	}
	return New(func(ctx context.Context) (Next[T], func(ctx context.Context) error, error) {
		next, closer, err := s.acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		remaining := n
		wrapped := func(ctx context.Context) (T, error) {
			if remaining <= 0 {
				var zero T
				return zero, ErrDone
			}
			v, err := next(ctx)
			if err != nil {
				return v, err
			}
			remaining--
			return v, nil
		}
		return wrapped, closer, nil
	})
}

// Skip drops the first n items. n <= 0 yields all items.
func (s *Stream[T]) Skip(n int) *Stream[T] {
	if s.Consumed() {
		return Fail[T](errors.WithStack(ErrConsumed))
	}
	return New(func(ctx context.Context) (Next[T], func(ctx context.Context) error, error) {
		next, closer, err := s.acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		skipped := false
		wrapped := func(ctx context.Context) (T, error) {
			if !skipped {
				skipped = true
				for i := 0; i < n; i++ {
					if _, err := next(ctx); err != nil {
						var zero T
						return zero, err
					}
				}
			}
			return next(ctx)
		}
		return wrapped, closer, nil
	})
}

// Paged groups items into lists of up to n, the last possibly shorter.
// n <= 0 yields no pages.
func (s *Stream[T]) Paged(n int) *Stream[[]T] {
	if s.Consumed() {
		return Fail[[]T](errors.WithStack(ErrConsumed))
	}
	return New(func(ctx context.Context) (Next[[]T], func(ctx context.Context) error, error) {
		next, closer, err := s.acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		done := false
		wrapped := func(ctx context.Context) ([]T, error) {
			if n <= 0 || done {
				return nil, ErrDone
			}
			page := make([]T, 0, n)
			for len(page) < n {
				v, err := next(ctx)
				if err != nil {
					if errors.Is(err, ErrDone) {
						done = true
						if len(page) == 0 {
							return nil, ErrDone
						}
						return page, nil
					}
					return nil, err
				}
				page = append(page, v)
			}
			return page, nil
		}
		return wrapped, closer, nil
	})
}
