package core

import "catalogdb/pkg/common"

// Index 抽象接口，屏蔽 BST 与 B-Tree 的差异
type Index interface {
	Insert(rec common.Record)
	Find(id string) (common.Record, bool)
	Ascend(fn func(rec common.Record) bool)
	Records() []common.Record
	Len() int
	Height() int
	Clear() int
	Type() string // "BST", "BTree"
}
