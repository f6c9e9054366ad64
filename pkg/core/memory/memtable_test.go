package memory

import (
	"fmt"
	"math/rand"
	"testing"

	"catalogdb/pkg/common"
	"catalogdb/pkg/core"
	"catalogdb/pkg/core/tree"

	"github.com/google/go-cmp/cmp"
)

var _ core.Index = (*BTreeIndex)(nil)
var _ core.Index = (*tree.OrderedIndex)(nil)

func TestBTreeIndexMatchesBST(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	bst := tree.New()
	bt := NewBTreeIndex(32)

	for i := 0; i < 3000; i++ {
		rec := common.Record{
			ID:            fmt.Sprintf("CS%03d", r.Intn(400)),
			Title:         fmt.Sprintf("course-%d", i),
			Prerequisites: []string{fmt.Sprintf("P%d", i%5)},
		}
		bst.Insert(rec)
		bt.Insert(rec)
	}

	if diff := cmp.Diff(bst.Records(), bt.Records()); diff != "" {
		t.Fatalf("enumeration differs between engines (-bst +btree):\n%s", diff)
	}

	for i := 0; i < 450; i++ {
		id := fmt.Sprintf("CS%03d", i)
		want, wantOK := bst.Find(id)
		got, gotOK := bt.Find(id)
		if wantOK != gotOK || !want.Equal(got) {
			t.Fatalf("Find(%s): bst=(%v,%v) btree=(%v,%v)", id, want, wantOK, got, gotOK)
		}
	}
}

func TestBTreeIndexDuplicates(t *testing.T) {
	bt := NewBTreeIndex(2)
	bt.Insert(common.Record{ID: "CS300", Title: "first"})
	bt.Insert(common.Record{ID: "CS100", Title: "other"})
	bt.Insert(common.Record{ID: "CS300", Title: "second"})

	rec, ok := bt.Find("CS300")
	if !ok || rec.Title != "first" {
		t.Fatalf("expected first duplicate, got ok=%v rec=%v", ok, rec)
	}
	if bt.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", bt.Len())
	}
	if _, ok := bt.Find("CS2"); ok {
		t.Fatalf("expected prefix query not to match")
	}
}

func TestBTreeIndexClear(t *testing.T) {
	bt := NewBTreeIndex(4)
	for i := 0; i < 100; i++ {
		bt.Insert(common.Record{ID: fmt.Sprintf("A%04d", i)})
	}
	if n := bt.Clear(); n != 100 {
		t.Fatalf("expected 100 released, got %d", n)
	}
	if _, ok := bt.Find("A0001"); ok {
		t.Fatalf("expected empty index after Clear")
	}
	if bt.Type() != "BTree" {
		t.Fatalf("unexpected type %q", bt.Type())
	}
}
