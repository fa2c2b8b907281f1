// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package client

// lruNode is a node in a doubly-linked LRU list of buffer ids.
type lruNode struct {
	id   int32
	prev *lruNode
	next *lruNode
}

// lruList orders cached buffers by use. The head is the most recently
// used. Not safe for concurrent use.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

func (l *lruList) Len() int { return l.len }

// PushFront adds id as the most recently used and returns its node.
func (l *lruList) PushFront(id int32) *lruNode {
	node := &lruNode{id: id}
	l.linkFront(node)
	return node
}

// MoveToFront marks node as the most recently used.
func (l *lruList) MoveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove unlinks node.
func (l *lruList) Remove(node *lruNode) {
	if node != nil {
		l.unlink(node)
	}
}

// RemoveOldest unlinks and returns the least recently used id.
func (l *lruList) RemoveOldest() (int32, bool) {
	if l.tail == nil {
		return 0, false
	}
	node := l.tail
	l.unlink(node)
	return node.id, true
}

func (l *lruList) linkFront(node *lruNode) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

func (l *lruList) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
