package media

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestPendingResolvesOnce(t *testing.T) {
	table := NewPendingTable()
	p := Pending{ArticleID: uuid.New(), NodeID: "node-1", Ref: "https://src/a.png"}
	if !table.Register("corr-1", p) {
		t.Fatalf("register: want=true")
	}
	if table.Register("corr-1", p) {
		t.Fatalf("duplicate register: want=false")
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, ok := table.Resolve("corr-1"); ok {
				wins.Add(1)
				if got.NodeID != p.NodeID {
					t.Errorf("resolved node: want=%s got=%s", p.NodeID, got.NodeID)
				}
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("resolutions: want=1 got=%d", wins.Load())
	}
	if table.Len() != 0 {
		t.Fatalf("len: want=0 got=%d", table.Len())
	}
}

func TestPendingRejectsEmptyID(t *testing.T) {
	table := NewPendingTable()
	if table.Register("", Pending{}) {
		t.Fatalf("empty id must not register")
	}
	for i := 0; i < 3; i++ {
		table.Register(fmt.Sprintf("c%d", i), Pending{NodeID: fmt.Sprint(i)})
	}
	if table.Len() != 3 {
		t.Fatalf("len: want=3 got=%d", table.Len())
	}
}
