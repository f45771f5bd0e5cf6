package main

import "testing"

func TestAdmitUnlimited(t *testing.T) {
	s := &Server{}
	for i := 0; i < 100; i++ {
		if !s.admit() {
			t.Fatalf("unlimited server refused connection %d", i)
		}
	}
}

func TestAdmitEnforcesCap(t *testing.T) {
	s := &Server{}
	s.SetMaxConnections(2)

	if !s.admit() || !s.admit() {
		t.Fatal("server refused connections below the cap")
	}
	if s.admit() {
		t.Error("server admitted a connection above the cap")
	}
	s.release()
	if !s.admit() {
		t.Error("server refused a connection after a slot freed up")
	}
}
