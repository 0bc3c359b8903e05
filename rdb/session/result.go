package session

// Result 查询结果
type Result[T any] struct {
	list []*T
}

func NewResult[T any](list []*T) *Result[T] {
	return &Result[T]{list: list}
}

func (r *Result[T]) List() []*T {
	return r.list
}

// First 第一条结果，没有结果时返回 nil
func (r *Result[T]) First() *T {
	if len(r.list) == 0 {
		return nil
	}
	return r.list[0]
}

func (r *Result[T]) Len() int {
	return len(r.list)
}
