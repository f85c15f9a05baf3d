package registry

import (
	"context"
	"testing"
	"time"
)

func newTestDiscovery(addrs ...string) *ServiceDiscovery {
	sd := NewServiceDiscovery(nil)
	sd.setInstances("asr", addrs)
	return sd
}

// TestPickRoundRobin verifies instances are used in turn.
func TestPickRoundRobin(t *testing.T) {
	sd := newTestDiscovery("a:1", "b:1", "c:1")
	defer sd.Close()
	var got []string
	for i := 0; i < 4; i++ {
		addr, err := sd.GetServiceAddress(context.Background(), "asr")
		if err != nil {
			t.Fatalf("GetServiceAddress error = %v", err)
		}
		got = append(got, addr)
	}
	want := []string{"a:1", "b:1", "c:1", "a:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("picks = %v, want %v", got, want)
		}
	}
}

// TestEjectSkipsInstanceUntilCooldown verifies an ejected backend returns after the cooldown.
func TestEjectSkipsInstanceUntilCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sd := newTestDiscovery("a:1", "b:1")
	defer sd.Close()
	sd.now = func() time.Time { return now }

	sd.Eject("asr", "a:1")
	for i := 0; i < 3; i++ {
		if addr, _ := sd.GetServiceAddress(context.Background(), "asr"); addr != "b:1" {
			t.Fatalf("pick %d = %s, want b:1", i, addr)
		}
	}
	now = now.Add(DefaultEjectCooldown)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		addr, _ := sd.GetServiceAddress(context.Background(), "asr")
		seen[addr] = true
	}
	if !seen["a:1"] {
		t.Fatalf("a:1 not returned after cooldown, saw %v", seen)
	}
}

// TestEjectAllStillServes verifies a fully ejected pool keeps answering.
func TestEjectAllStillServes(t *testing.T) {
	sd := newTestDiscovery("a:1")
	defer sd.Close()
	sd.Eject("asr", "a:1")
	if addr, err := sd.GetServiceAddress(context.Background(), "asr"); err != nil || addr != "a:1" {
		t.Fatalf("GetServiceAddress = %q, %v", addr, err)
	}
	sd.setInstances("asr", []string{"b:1"})
	if got := sd.GetService("asr"); len(got) != 1 || got[0] != "b:1" {
		t.Fatalf("instances = %v", got)
	}
}
