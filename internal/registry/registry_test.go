package registry

import (
	"sync"
	"testing"

	"github.com/knotex/knotex/pkg/types"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := New()
	addr := types.NetAddr{Host: "127.0.0.1", Port: 4040}
	name := Via(addr, RoleLogic)

	handle := "logic-handle"
	if err := r.Register(name, handle); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Lookup(name)
	if !ok || got != handle {
		t.Fatalf("Lookup = %v, %v", got, ok)
	}

	if err := r.Register(name, "other"); err == nil {
		t.Fatal("duplicate Register must fail")
	}

	r.Unregister(name)
	if _, ok := r.Lookup(name); ok {
		t.Fatal("Lookup after Unregister must fail")
	}

	// Unregistering again is a no-op.
	r.Unregister(name)
}

func TestRolesAreDistinctNames(t *testing.T) {
	r := New()
	addr := types.NetAddr{Host: "127.0.0.1", Port: 4040}

	for _, role := range []string{RoleNode, RoleLogic, RoleListener, RoleClients, RoleConnectors} {
		if err := r.Register(Via(addr, role), role); err != nil {
			t.Fatalf("Register %s: %v", role, err)
		}
	}
	if r.Len() != 5 {
		t.Fatalf("Len = %d, want 5", r.Len())
	}

	got, ok := r.Lookup(Via(addr, RoleListener))
	if !ok || got != RoleListener {
		t.Fatalf("Lookup listener = %v, %v", got, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			addr := types.NetAddr{Host: "127.0.0.1", Port: port}
			name := Via(addr, RoleNode)
			if err := r.Register(name, port); err != nil {
				t.Errorf("Register port %d: %v", port, err)
			}
			if _, ok := r.Lookup(name); !ok {
				t.Errorf("Lookup port %d failed", port)
			}
			r.Unregister(name)
		}(4000 + i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Fatalf("Len after teardown = %d, want 0", r.Len())
	}
}
