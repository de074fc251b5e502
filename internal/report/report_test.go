package report

import (
	"fmt"
	"sync"
	"testing"
)

func TestBoardRecord(t *testing.T) {
	b := NewBoard()
	b.Record(Counters{Clustered: 5, Orphaned: 2})
	b.Record(Counters{Clustered: 3, FailedCalls: 1})

	got := b.Counters()
	if got.Clustered != 8 || got.Orphaned != 2 || got.FailedCalls != 1 {
		t.Errorf("unexpected totals: %+v", got)
	}
}

func TestBoardRecentOrder(t *testing.T) {
	b := NewBoard()
	b.Logf("cluster", "first")
	b.Logf("merge", "second")
	b.Logf("split", "third")

	recent := b.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[0].Message != "third" || recent[1].Message != "second" {
		t.Errorf("wrong order: %q then %q", recent[0].Message, recent[1].Message)
	}
}

func TestBoardRingEviction(t *testing.T) {
	b := NewBoard()
	for i := 0; i < ringSize+10; i++ {
		b.Logf("cluster", "entry %d", i)
	}

	recent := b.Recent(ringSize * 2)
	if len(recent) != ringSize {
		t.Fatalf("got %d entries, want %d", len(recent), ringSize)
	}
	want := fmt.Sprintf("entry %d", ringSize+9)
	if recent[0].Message != want {
		t.Errorf("newest = %q, want %q", recent[0].Message, want)
	}
}

func TestBoardConcurrentAccess(t *testing.T) {
	b := NewBoard()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Record(Counters{Clustered: 1})
				b.Logf("cluster", "tick")
				b.Recent(10)
				b.Counters()
			}
		}()
	}
	wg.Wait()

	if got := b.Counters().Clustered; got != 800 {
		t.Errorf("Clustered = %d, want 800", got)
	}
}
