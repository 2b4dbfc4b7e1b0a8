package storer

import (
	"io"

	"github.com/haugantoine/git/plumbing"
)

type referenceSliceIter struct {
	series []*plumbing.Reference
	pos    int
}

// NewReferenceSliceIter returns a ReferenceIter over an in-memory slice.
func NewReferenceSliceIter(series []*plumbing.Reference) ReferenceIter {
	return &referenceSliceIter{series: series}
}

func (it *referenceSliceIter) Next() (*plumbing.Reference, error) {
	if it.pos >= len(it.series) {
		return nil, io.EOF
	}
	ref := it.series[it.pos]
	it.pos++
	return ref, nil
}

func (it *referenceSliceIter) ForEach(cb func(*plumbing.Reference) error) error {
	for {
		ref, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := cb(ref); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (it *referenceSliceIter) Close() {
	it.pos = len(it.series)
}

type multiReferenceIter struct {
	iters []ReferenceIter
}

// NewMultiReferenceIter returns an iterator that drains each of iters in
// turn, the shape storage/transactional uses to present a base store and
// its temporal overlay as a single series.
func NewMultiReferenceIter(iters []ReferenceIter) ReferenceIter {
	return &multiReferenceIter{iters: iters}
}

func (it *multiReferenceIter) Next() (*plumbing.Reference, error) {
	for len(it.iters) > 0 {
		ref, err := it.iters[0].Next()
		if err == io.EOF {
			it.iters[0].Close()
			it.iters = it.iters[1:]
			continue
		}
		return ref, err
	}
	return nil, io.EOF
}

func (it *multiReferenceIter) ForEach(cb func(*plumbing.Reference) error) error {
	for {
		ref, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := cb(ref); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (it *multiReferenceIter) Close() {
	for _, iter := range it.iters {
		iter.Close()
	}
	it.iters = nil
}
