package main

import (
	"testing"

	"suteravr/internal/wire"
)

func TestManagerSpawnAndJoin(t *testing.T) {
	mgr := NewManager()
	defer mgr.Shutdown(ShutdownSigint)

	if _, ok := mgr.SpawnNew(1, 10); !ok {
		t.Fatal("spawn failed")
	}
	grant, ok := mgr.JoinInstance(1)
	if !ok {
		t.Fatal("join failed")
	}
	if grant.Player == 0 {
		t.Error("player id not allocated")
	}
	if grant.Instance == nil {
		t.Error("grant carries no instance inbox")
	}
}

func TestManagerSpawnOccupied(t *testing.T) {
	mgr := NewManager()
	defer mgr.Shutdown(ShutdownSigint)

	if _, ok := mgr.SpawnNew(1, 10); !ok {
		t.Fatal("first spawn failed")
	}
	if _, ok := mgr.SpawnNew(1, 20); ok {
		t.Error("second spawn for the same id succeeded")
	}
}

func TestManagerJoinUnknownInstance(t *testing.T) {
	mgr := NewManager()
	defer mgr.Shutdown(ShutdownSigint)

	if _, ok := mgr.JoinInstance(999); ok {
		t.Error("join of unknown instance succeeded")
	}
}

func TestManagerPlayerIDsAreFresh(t *testing.T) {
	mgr := NewManager()
	defer mgr.Shutdown(ShutdownSigint)

	mgr.SpawnNew(1, 1)
	mgr.SpawnNew(2, 1)

	seen := make(map[wire.PlayerID]bool)
	for i := 0; i < 5; i++ {
		id := wire.InstanceID(1 + i%2)
		grant, ok := mgr.JoinInstance(id)
		if !ok {
			t.Fatalf("join %d failed", i)
		}
		if seen[grant.Player] {
			t.Errorf("player id %d allocated twice", grant.Player)
		}
		seen[grant.Player] = true
	}
}

func TestManagerSnapshot(t *testing.T) {
	mgr := NewManager()
	defer mgr.Shutdown(ShutdownSigint)

	mgr.SpawnNew(2, 20)
	mgr.SpawnNew(1, 10)

	infos := mgr.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("snapshot has %d instances, want 2", len(infos))
	}
	if infos[0].ID != 1 || infos[1].ID != 2 {
		t.Errorf("snapshot order = %v", infos)
	}
	if infos[0].World != 10 || infos[1].World != 20 {
		t.Errorf("snapshot worlds = %v", infos)
	}
}

func TestManagerShutdownDrainsInstances(t *testing.T) {
	mgr := NewManager()
	mgr.SpawnNew(1, 1)
	mgr.SpawnNew(2, 1)

	// Shutdown only returns after draining every instance's done channel.
	mgr.Shutdown(ShutdownSigterm)
}
