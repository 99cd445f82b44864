package keylock_test

import (
	"sync"
	"testing"

	"github.com/JaimeStill/pulse/pkg/keylock"
)

func TestLockSerializesSameKey(t *testing.T) {
	locks := keylock.New[string]()
	counter := 0

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			unlock := locks.Lock("cluster")
			defer unlock()
			v := counter
			counter = v + 1
		})
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
	if n := locks.Len(); n != 0 {
		t.Errorf("Len() = %d after release, want 0", n)
	}
}

func TestLockIndependentKeys(t *testing.T) {
	locks := keylock.New[int]()

	unlockA := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(2)
		unlock()
		close(done)
	}()

	<-done
	unlockA()
}

func TestUnlockIdempotent(t *testing.T) {
	locks := keylock.New[string]()

	unlock := locks.Lock("a")
	unlock()
	unlock()

	again := locks.Lock("a")
	again()

	if n := locks.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}
