package control

import (
	"testing"
	"time"
)

func TestResetShutdownCycle(t *testing.T) {
	Reset()
	if Stopped() {
		t.Fatal("fresh flag must not report stopped")
	}
	Shutdown()
	if !Stopped() {
		t.Fatal("flag must report stopped after Shutdown")
	}
	Reset()
	if Stopped() {
		t.Fatal("Reset must clear the flag")
	}
}

func TestShutdownAfterFires(t *testing.T) {
	Reset()
	ShutdownAfter(5 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for !Stopped() {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired")
		}
		time.Sleep(time.Millisecond)
	}
}
