package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewList(t *testing.T) {
	list := NewList[int]()
	assert.Nil(t, list.Head)
	assert.Nil(t, list.Tail)
	assert.Equal(t, 0, list.Len())
}

func TestAddNodeHead(t *testing.T) {
	list := NewList[int]()
	list.AddNodeHead(5)
	assert.Equal(t, 5, list.Head.Value)
	assert.Equal(t, 5, list.Tail.Value)

	list.AddNodeHead(3)
	assert.Equal(t, 3, list.Head.Value)
	assert.Equal(t, 5, list.Tail.Value)
	assert.Equal(t, 2, list.Len())
}

func TestAddNodeTail(t *testing.T) {
	list := NewList[int]()
	list.AddNodeTail(5)
	list.AddNodeTail(10)
	assert.Equal(t, 5, list.Head.Value)
	assert.Equal(t, 10, list.Tail.Value)
	assert.Equal(t, 2, list.Len())
}

func TestPopHead(t *testing.T) {
	list := NewList[int]()
	_, ok := list.PopHead()
	assert.False(t, ok)

	list.AddNodeTail(1)
	list.AddNodeTail(2)
	list.AddNodeHead(0)

	var got []int
	for {
		v, ok := list.PopHead()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Nil(t, list.Head)
	assert.Nil(t, list.Tail)
	assert.Equal(t, 0, list.Len())
}

func TestEmpty(t *testing.T) {
	list := NewList[int]()
	list.AddNodeTail(5)
	list.AddNodeTail(10)
	list.Empty()
	assert.Nil(t, list.Head)
	assert.Nil(t, list.Tail)
	assert.Equal(t, 0, list.Len())
}

func TestRemoveNode(t *testing.T) {
	list := NewList[int]()
	list.AddNodeTail(5)
	list.AddNodeTail(10)
	list.AddNodeTail(15)
	list.RemoveNode(list.Head.Next)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, 5, list.Head.Value)
	assert.Equal(t, 15, list.Tail.Value)
	assert.Equal(t, list.Head, list.Tail.Prev)
}
