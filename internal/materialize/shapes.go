package materialize

import (
	"fmt"
	"iter"

	"github.com/roach88/docrepo/internal/ir"
)

// Page is one page of results with the total number of matches.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Index int   `json:"index"`
	Size  int   `json:"size"`
}

// HasNext reports whether a later page exists. An unpaged result has none.
func (p Page[T]) HasNext() bool {
	if p.Size <= 0 {
		return false
	}
	return int64(p.Index+1)*int64(p.Size) < p.Total
}

// Slice is one page of results that only knows whether a next page exists.
type Slice[T any] struct {
	Items   []T  `json:"items"`
	Index   int  `json:"index"`
	Size    int  `json:"size"`
	HasNext bool `json:"has_next"`
}

// One returns the only result. It fails with ErrNotFound on an empty cursor
// and with a CardinalityError when a second row follows the first.
func One[T any](c Cursor, p Projector[T]) (v T, err error) {
	v, ok, err := Optional(c, p)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrNotFound
	}
	return v, nil
}

// Optional returns the only result, if any. Absence is not an error; a
// second row is.
func Optional[T any](c Cursor, p Projector[T]) (v T, ok bool, err error) {
	defer closeWith(c, &err)
	if !c.Next() {
		return v, false, c.Err()
	}
	if v, err = p(c.Document()); err != nil {
		return v, false, err
	}
	if c.Next() {
		var zero T
		return zero, false, &CardinalityError{Count: 2}
	}
	if err := c.Err(); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// List returns every result in cursor order.
func List[T any](c Cursor, p Projector[T]) (out []T, err error) {
	defer closeWith(c, &err)
	out = []T{}
	for c.Next() {
		v, err := p(c.Document())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, c.Err()
}

// Stream is a lazy sequence of results that owns its cursor. Ranging over
// All closes the cursor when the loop ends, early breaks included; a stream
// that is never ranged must be closed with Close.
//
// The cursor holds the store's only connection until it is closed, so
// running another query from inside the loop blocks. Read the stream to
// the end, or Close it, before issuing the next query.
type Stream[T any] struct {
	seq   iter.Seq2[T, error]
	close func() error
}

// StreamOf hands c to the returned stream.
func StreamOf[T any](c Cursor, p Projector[T]) *Stream[T] {
	return &Stream[T]{seq: cursorSeq(c, p), close: c.Close}
}

// All yields the results. A failure is yielded once as the last pair.
// A stream can be ranged once.
func (s *Stream[T]) All() iter.Seq2[T, error] { return s.seq }

// Close releases the cursor. It is safe to call more than once and after
// the stream was ranged.
func (s *Stream[T]) Close() error { return s.close() }

func cursorSeq[T any](c Cursor, p Projector[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer c.Close()
		var zero T
		for c.Next() {
			v, err := p(c.Document())
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// Iterator is a pull-style cursor over projected results.
type Iterator[T any] struct {
	next func() (T, error, bool)
	stop func()
	c    Cursor // nil for in-memory results

	cur  T
	err  error
	done bool
}

// Iter wraps c. The caller must Close the iterator.
func Iter[T any](c Cursor, p Projector[T]) *Iterator[T] {
	it := pull(cursorSeq(c, p))
	it.c = c
	return it
}

func pull[T any](seq iter.Seq2[T, error]) *Iterator[T] {
	next, stop := iter.Pull2(seq)
	return &Iterator[T]{next: next, stop: stop}
}

// Next advances to the next result.
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	v, err, ok := it.next()
	if !ok || err != nil {
		it.err = err
		it.Close()
		return false
	}
	it.cur = v
	return true
}

// Value returns the current result.
func (it *Iterator[T]) Value() T { return it.cur }

// Err returns the error that stopped iteration.
func (it *Iterator[T]) Err() error { return it.err }

// Close releases the cursor. It is safe to call more than once.
func (it *Iterator[T]) Close() error {
	it.done = true
	it.stop()
	if it.c != nil {
		return it.c.Close()
	}
	return nil
}

// PageOf reads a page. The query must have requested the total count.
func PageOf[T any](c Cursor, p Projector[T], req ir.PageRequest) (Page[T], error) {
	total := c.TotalCount()
	items, err := List(c, p)
	if err != nil {
		return Page[T]{}, err
	}
	if total < 0 {
		return Page[T]{}, fmt.Errorf("page query did not request the total count")
	}
	return Page[T]{Items: items, Total: total, Index: req.Index, Size: req.Size}, nil
}

// SliceOf reads a slice. The query reads one row more than the page size;
// its presence means a next page exists and it is not returned.
func SliceOf[T any](c Cursor, p Projector[T], req ir.PageRequest) (Slice[T], error) {
	items, err := List(c, p)
	if err != nil {
		return Slice[T]{}, err
	}
	s := Slice[T]{Items: items, Index: req.Index, Size: req.Size}
	if req.Size > 0 && len(items) > req.Size {
		s.Items = items[:req.Size]
		s.HasNext = true
	}
	return s, nil
}
