package logging

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	if got := r.GetLastLine(); got != "" {
		t.Errorf("empty ring last line = %q", got)
	}
	if got := r.Recent(5); got != nil {
		t.Errorf("empty ring recent = %q", got)
	}

	_, _ = r.Write([]byte("a\n"))
	_, _ = r.Write([]byte("b\r\n"))
	if got := r.Recent(5); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("partial ring recent = %q", got)
	}

	_, _ = r.Write([]byte("c"))
	_, _ = r.Write([]byte("d"))
	if got := r.GetLastLine(); got != "d" {
		t.Errorf("last line = %q", got)
	}
	if got := r.Recent(5); !slices.Equal(got, []string{"b", "c", "d"}) {
		t.Errorf("wrapped ring recent = %q", got)
	}
	if got := r.Recent(2); !slices.Equal(got, []string{"c", "d"}) {
		t.Errorf("recent(2) = %q", got)
	}
	if got := r.Recent(0); got != nil {
		t.Errorf("recent(0) = %q", got)
	}
}

func TestLineRing_Concurrent(t *testing.T) {
	r := NewLineRing(8)
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				_, _ = fmt.Fprintf(r, "%d-%d\n", i, j)
				_ = r.Recent(4)
			}
		}()
	}
	wg.Wait()
	if got := len(r.Recent(100)); got != 8 {
		t.Errorf("expected full ring of 8, got %d", got)
	}
}
