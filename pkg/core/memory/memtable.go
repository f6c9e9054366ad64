package memory

import (
	"catalogdb/pkg/common"

	"github.com/google/btree"
)

// Item orders by ID first and by insertion sequence second, so records with
// duplicate IDs coexist in the order they arrived.
type Item struct {
	Key string
	Seq uint64
	Rec common.Record
}

func less(a, b Item) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Seq < b.Seq
}

// BTreeIndex is a B-Tree backed index with the same observable behaviour as
// tree.OrderedIndex. It is not safe for concurrent use.
type BTreeIndex struct {
	tree *btree.BTreeG[Item]
	seq  uint64
}

func NewBTreeIndex(degree int) *BTreeIndex {
	return &BTreeIndex{
		tree: btree.NewG(degree, less),
	}
}

func (bi *BTreeIndex) Insert(rec common.Record) {
	bi.seq++
	bi.tree.ReplaceOrInsert(Item{Key: rec.ID, Seq: bi.seq, Rec: rec.Clone()})
}

// Find returns the earliest inserted record with the given ID.
func (bi *BTreeIndex) Find(id string) (common.Record, bool) {
	var (
		found common.Record
		ok    bool
	)
	bi.tree.AscendGreaterOrEqual(Item{Key: id}, func(item Item) bool {
		if item.Key == id {
			found, ok = item.Rec.Clone(), true
		}
		return false
	})
	return found, ok
}

func (bi *BTreeIndex) Ascend(fn func(rec common.Record) bool) {
	bi.tree.Ascend(func(item Item) bool {
		return fn(item.Rec.Clone())
	})
}

func (bi *BTreeIndex) Records() []common.Record {
	out := make([]common.Record, 0, bi.tree.Len())
	bi.Ascend(func(rec common.Record) bool {
		out = append(out, rec)
		return true
	})
	return out
}

func (bi *BTreeIndex) Len() int {
	return bi.tree.Len()
}

// Height is not exposed by the btree package; the tree is balanced, so
// callers treat 0 as "not tracked".
func (bi *BTreeIndex) Height() int {
	return 0
}

func (bi *BTreeIndex) Clear() int {
	n := bi.tree.Len()
	bi.tree.Clear(false)
	bi.seq = 0
	return n
}

func (bi *BTreeIndex) Type() string {
	return "BTree"
}
