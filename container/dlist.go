package container

type ListNode[T any] struct {
	Prev  *ListNode[T]
	Next  *ListNode[T]
	Value T
}

// List is a doubly linked list. The outbound queue of a connection uses it because a
// partially written frame has to go back to the head, not the tail.
type List[T any] struct {
	Head   *ListNode[T]
	Tail   *ListNode[T]
	Length int
}

func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Empty unlinks every node so the values can be collected.
func (l *List[T]) Empty() {
	current := l.Head
	for current != nil {
		next := current.Next
		current.Prev, current.Next = nil, nil
		current = next
	}
	l.Head, l.Tail = nil, nil
	l.Length = 0
}

func (l *List[T]) AddNodeHead(value T) {
	node := &ListNode[T]{Value: value}
	if l.Head == nil {
		l.Head, l.Tail = node, node
	} else {
		node.Next, l.Head.Prev, l.Head = l.Head, node, node
	}
	l.Length++
}

func (l *List[T]) AddNodeTail(value T) {
	node := &ListNode[T]{Value: value}
	if l.Tail == nil {
		l.Head, l.Tail = node, node
	} else {
		node.Prev, l.Tail.Next, l.Tail = l.Tail, node, node
	}
	l.Length++
}

// PopHead removes and returns the first value. ok is false when the list is empty.
func (l *List[T]) PopHead() (value T, ok bool) {
	if l.Head == nil {
		return value, false
	}
	node := l.Head
	l.RemoveNode(node)
	return node.Value, true
}

// RemoveNode unlinks node from the list.
func (l *List[T]) RemoveNode(node *ListNode[T]) {
	if node.Prev != nil {
		node.Prev.Next = node.Next
	} else {
		l.Head = node.Next
	}
	if node.Next != nil {
		node.Next.Prev = node.Prev
	} else {
		l.Tail = node.Prev
	}
	node.Next, node.Prev = nil, nil
	l.Length--
}

// Len returns the number of nodes in the list.
func (l *List[T]) Len() int {
	return l.Length
}
