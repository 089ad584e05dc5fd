package middleware

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestChatLockerSerializesOneChat(t *testing.T) {
	l := NewChatLocker()
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(42)
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Fatalf("peak concurrency = %d, want 1", peak.Load())
	}
	if l.Len() != 0 {
		t.Fatalf("locks left = %d", l.Len())
	}
}

func TestChatLockerIndependentChats(t *testing.T) {
	l := NewChatLocker()
	unlockA := l.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := l.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chat 2 blocked by chat 1")
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	unlockA()
	if l.Len() != 0 {
		t.Fatalf("Len = %d after unlock", l.Len())
	}
}
