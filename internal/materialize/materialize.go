package materialize

import (
	"fmt"
	"iter"

	"github.com/roach88/docrepo/internal/ir"
)

// Request describes the result a caller expects.
type Request struct {
	Shape  ir.ReturnShape
	Entity *ir.EntityMeta
	Page   *ir.PageRequest
}

func (r Request) page() ir.PageRequest {
	if r.Page == nil {
		return ir.PageRequest{}
	}
	return *r.Page
}

// Materialize converts c into the wrapper of req.Shape:
//
//	one       T (ErrNotFound when empty)
//	optional  *T (nil when empty)
//	list      []T
//	stream    *Stream[T]
//	page      Page[T]
//	slice     Slice[T]
//	iterator  *Iterator[T]
//
// When the cursor carries distinct and facet aggregations the results are
// the distinct records instead of the rows.
func Materialize[T any](c Cursor, req Request, p Projector[T]) (any, error) {
	if hasDistinct(c.Aggregations()) {
		items, err := Distinct[T](req.Entity, c.Aggregations())
		if cerr := c.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		return fromItems(items, req)
	}

	switch req.Shape.Wrapper {
	case ir.WrapOne:
		return One(c, p)
	case ir.WrapOptional:
		v, ok, err := Optional(c, p)
		if err != nil || !ok {
			return (*T)(nil), err
		}
		return &v, nil
	case ir.WrapList, "":
		return List(c, p)
	case ir.WrapStream:
		return StreamOf(c, p), nil
	case ir.WrapPage:
		return PageOf(c, p, req.page())
	case ir.WrapSlice:
		return SliceOf(c, p, req.page())
	case ir.WrapIterator:
		return Iter(c, p), nil
	default:
		c.Close()
		return nil, fmt.Errorf("unknown result wrapper %q", req.Shape.Wrapper)
	}
}

// fromItems shapes already materialized items.
func fromItems[T any](items []T, req Request) (any, error) {
	switch req.Shape.Wrapper {
	case ir.WrapOne, ir.WrapOptional:
		if len(items) > 1 {
			return nil, &CardinalityError{Count: len(items)}
		}
		if len(items) == 0 {
			if req.Shape.Wrapper == ir.WrapOne {
				return nil, ErrNotFound
			}
			return (*T)(nil), nil
		}
		if req.Shape.Wrapper == ir.WrapOne {
			return items[0], nil
		}
		return &items[0], nil
	case ir.WrapList, "":
		return items, nil
	case ir.WrapStream:
		return &Stream[T]{seq: seqOf(items), close: func() error { return nil }}, nil
	case ir.WrapPage:
		pr := req.page()
		return Page[T]{Items: items, Total: int64(len(items)), Index: pr.Index, Size: pr.Size}, nil
	case ir.WrapSlice:
		pr := req.page()
		return Slice[T]{Items: items, Index: pr.Index, Size: pr.Size}, nil
	case ir.WrapIterator:
		return pull(seqOf(items)), nil
	default:
		return nil, fmt.Errorf("unknown result wrapper %q", req.Shape.Wrapper)
	}
}

func seqOf[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, v := range items {
			if !yield(v, nil) {
				return
			}
		}
	}
}
