package tree

import (
	"catalogdb/pkg/common"
)

// node owns its record and both children exclusively.
type node struct {
	rec   common.Record
	left  *node
	right *node
}

// OrderedIndex is an unbalanced binary search tree keyed by Record.ID.
//
// Keys are compared byte-wise. A key equal to an existing node's key is
// placed in that node's right subtree, so duplicates coexist: Find only
// ever returns the earliest inserted one, while Ascend yields all of them
// in insertion order. All walks are iterative, so a degenerate chain built
// from pre-sorted input cannot exhaust the goroutine stack.
//
// OrderedIndex is not safe for concurrent use.
type OrderedIndex struct {
	root  *node
	count int
}

func New() *OrderedIndex {
	return &OrderedIndex{}
}

// Insert adds a copy of rec. It never fails.
func (t *OrderedIndex) Insert(rec common.Record) {
	n := &node{rec: rec.Clone()}
	t.count++

	if t.root == nil {
		t.root = n
		return
	}

	cur := t.root
	for {
		if cur.rec.ID > rec.ID {
			if cur.left == nil {
				cur.left = n
				return
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = n
				return
			}
			cur = cur.right
		}
	}
}

// Find returns the first record on the search path whose ID equals id.
func (t *OrderedIndex) Find(id string) (common.Record, bool) {
	cur := t.root
	for cur != nil {
		if cur.rec.ID == id {
			return cur.rec.Clone(), true
		}
		if id < cur.rec.ID {
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	return common.Record{}, false
}

// Ascend calls fn for every record in ascending ID order until fn returns
// false. Each call is a fresh traversal from the root.
func (t *OrderedIndex) Ascend(fn func(rec common.Record) bool) {
	var stack []*node
	cur := t.root
	for cur != nil || len(stack) > 0 {
		for cur != nil {
			stack = append(stack, cur)
			cur = cur.left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(cur.rec.Clone()) {
			return
		}
		cur = cur.right
	}
}

func (t *OrderedIndex) Records() []common.Record {
	out := make([]common.Record, 0, t.count)
	t.Ascend(func(rec common.Record) bool {
		out = append(out, rec)
		return true
	})
	return out
}

func (t *OrderedIndex) Len() int {
	return t.count
}

// Height is the number of nodes on the longest root-to-leaf path.
func (t *OrderedIndex) Height() int {
	if t.root == nil {
		return 0
	}
	height := 0
	level := []*node{t.root}
	for len(level) > 0 {
		height++
		var next []*node
		for _, n := range level {
			if n.left != nil {
				next = append(next, n.left)
			}
			if n.right != nil {
				next = append(next, n.right)
			}
		}
		level = next
	}
	return height
}

// Clear releases every node exactly once in post-order and returns how many
// were released. The index is empty afterwards.
func (t *OrderedIndex) Clear() int {
	released := 0
	stack := []*node{}
	if t.root != nil {
		stack = append(stack, t.root)
	}
	t.root = nil

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		switch {
		case n.left != nil:
			stack = append(stack, n.left)
			n.left = nil
		case n.right != nil:
			stack = append(stack, n.right)
			n.right = nil
		default:
			// both children already released
			stack = stack[:len(stack)-1]
			n.rec = common.Record{}
			released++
		}
	}

	t.count = 0
	return released
}

func (t *OrderedIndex) Type() string {
	return "BST"
}
