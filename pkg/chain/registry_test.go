// Copyright 2025 Lattice Relay

package chain

import "testing"

func TestCodeIDRegistryRegisterAndLookup(t *testing.T) {
	r := NewCodeIDRegistry()
	if err := r.Register("code-1", "07-tendermint"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got, ok := r.ClientType("code-1")
	if !ok || got != "07-tendermint" {
		t.Errorf("ClientType() = (%q, %v), want (07-tendermint, true)", got, ok)
	}
}

func TestCodeIDRegistryRebindSameValueOK(t *testing.T) {
	r := NewCodeIDRegistry()
	if err := r.Register("code-1", "07-tendermint"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register("code-1", "07-tendermint"); err != nil {
		t.Errorf("idempotent Register() error = %v, want nil", err)
	}
}

func TestCodeIDRegistryRebindDifferentValueFails(t *testing.T) {
	r := NewCodeIDRegistry()
	if err := r.Register("code-1", "07-tendermint"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register("code-1", "06-solomachine"); err == nil {
		t.Errorf("Register() with conflicting client type: got nil error, want error")
	}
}

func TestCodeIDRegistryUnknownLookup(t *testing.T) {
	r := NewCodeIDRegistry()
	if _, ok := r.ClientType("missing"); ok {
		t.Errorf("ClientType() for unregistered code id: got ok=true, want false")
	}
}

func TestGlobalCodeIDRegistrySingleton(t *testing.T) {
	a := GlobalCodeIDRegistry()
	b := GlobalCodeIDRegistry()
	if a != b {
		t.Errorf("GlobalCodeIDRegistry() returned different instances on repeated calls")
	}
}
