package broadcast

import (
	"context"
	"errors"
	"fmt"
)

// ErrSourcePanic wraps a panic recovered from a source, zone or handler call.
var ErrSourcePanic = errors.New("recovered panic")

// PassResult is the outcome of one pass over one zone.
type PassResult struct {
	ZoneID    string
	Succeeded int
	Failed    int
	// Filtered counts response records dropped by the query post-filter.
	Filtered int
	// Err is set when the pass ended early because the source itself failed.
	Err error
}

// Empty reports whether the pass saw no items at all.
func (r PassResult) Empty() bool {
	return r.Succeeded == 0 && r.Failed == 0 && r.Filtered == 0
}

// role adapts one side of a source to the shared drain loop.
type role[T any] struct {
	before  func(context.Context) error
	hasNext func(context.Context) (bool, error)
	next    func(context.Context) (T, error)
	after   func(context.Context) error
	isNil   func(T) bool
}

type deliverResult uint8

const (
	delivered deliverResult = iota
	filtered
)

// drain runs before, has-next, next, deliver and after until the source reports no
// more items. An item is a success only if all of its steps succeed. A has-next
// failure or a nil item ends the pass; any other failure only affects its item.
func drain[T any](
	ctx context.Context,
	r role[T],
	deliver func(context.Context, T) (deliverResult, error),
	onItemErr func(error),
) PassResult {
	var res PassResult

	for {
		beforeErr := protect(func() error { return r.before(ctx) })

		has, hasErr := protectValue(func() (bool, error) { return r.hasNext(ctx) })
		if hasErr != nil || !has {
			afterErr := protect(func() error { return r.after(ctx) })
			if hasErr != nil {
				res.Err = fmt.Errorf("has-next: %w", hasErr)
			}
			if err := errors.Join(beforeErr, afterErr); err != nil {
				onItemErr(err)
			}
			return res
		}

		item, nextErr := protectValue(func() (T, error) { return r.next(ctx) })
		nilItem := nextErr == nil && r.isNil(item)

		var itemErr error
		outcome := delivered
		switch {
		case beforeErr != nil:
			itemErr = fmt.Errorf("before: %w", beforeErr)
		case nextErr != nil:
			itemErr = fmt.Errorf("next: %w", nextErr)
		case nilItem:
			itemErr = ErrNilEvent
		default:
			var err error
			outcome, err = protectValue(func() (deliverResult, error) { return deliver(ctx, item) })
			itemErr = err
		}

		if afterErr := protect(func() error { return r.after(ctx) }); afterErr != nil {
			itemErr = errors.Join(itemErr, fmt.Errorf("after: %w", afterErr))
		}

		switch {
		case itemErr != nil:
			res.Failed++
			onItemErr(itemErr)
		case outcome == filtered:
			res.Filtered++
		default:
			res.Succeeded++
		}

		if nilItem {
			return res
		}
	}
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanic, r)
		}
	}()
	return fn()
}

func protectValue[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanic, r)
		}
	}()
	return fn()
}
