// Package hashset is a minimal generic set.
package hashset

type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return map[T]struct{}{}
}

func (vs Set[T]) Set(v T) {
	vs[v] = struct{}{}
}

func (vs Set[T]) Has(v T) bool {
	_, ok := vs[v]
	return ok
}

// AppendNew appends v to dst unless v was seen before. dst keeps first-seen order.
func (vs Set[T]) AppendNew(dst []T, v T) []T {
	if vs.Has(v) {
		return dst
	}
	vs.Set(v)
	return append(dst, v)
}
