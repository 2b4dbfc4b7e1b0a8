package storer

import (
	"io"

	"github.com/haugantoine/git/plumbing"
)

type objectSliceIter struct {
	series []plumbing.EncodedObject
	pos    int
}

// NewEncodedObjectSliceIter returns an EncodedObjectIter over an
// in-memory slice, the shape every backend's IterEncodedObjects uses to
// hand back a stable snapshot.
func NewEncodedObjectSliceIter(series []plumbing.EncodedObject) EncodedObjectIter {
	return &objectSliceIter{series: series}
}

func (it *objectSliceIter) Next() (plumbing.EncodedObject, error) {
	if it.pos >= len(it.series) {
		return nil, io.EOF
	}
	obj := it.series[it.pos]
	it.pos++
	return obj, nil
}

func (it *objectSliceIter) ForEach(cb func(plumbing.EncodedObject) error) error {
	for {
		obj, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (it *objectSliceIter) Close() {
	it.pos = len(it.series)
}

type multiObjectIter struct {
	iters []EncodedObjectIter
}

// NewMultiEncodedObjectIter returns an iterator that drains each of iters
// in turn, the shape storage/transactional uses to present a base store
// and its temporal overlay as a single series.
func NewMultiEncodedObjectIter(iters []EncodedObjectIter) EncodedObjectIter {
	return &multiObjectIter{iters: iters}
}

func (it *multiObjectIter) Next() (plumbing.EncodedObject, error) {
	for len(it.iters) > 0 {
		obj, err := it.iters[0].Next()
		if err == io.EOF {
			it.iters[0].Close()
			it.iters = it.iters[1:]
			continue
		}
		return obj, err
	}
	return nil, io.EOF
}

func (it *multiObjectIter) ForEach(cb func(plumbing.EncodedObject) error) error {
	for {
		obj, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (it *multiObjectIter) Close() {
	for _, iter := range it.iters {
		iter.Close()
	}
	it.iters = nil
}
