package main

import "testing"

func TestBuildCommand(t *testing.T) {
	cmd, err := buildCommand("start", []string{"-device", "2"})
	if err != nil || cmd.Cmd != "start" || cmd.Device != "2" {
		t.Fatalf("unexpected start command %+v %v", cmd, err)
	}
	cmd, err = buildCommand("start", nil)
	if err != nil || cmd.Device != "0" {
		t.Fatalf("expected default device 0, got %+v %v", cmd, err)
	}
	if _, err := buildCommand("transcript", nil); err == nil {
		t.Fatal("expected transcript without -session to fail")
	}
	cmd, err = buildCommand("sessions", []string{"-limit", "5"})
	if err != nil || cmd.Limit != 5 {
		t.Fatalf("unexpected sessions command %+v %v", cmd, err)
	}
	if cmd, err := buildCommand("version", nil); err != nil || cmd != nil {
		t.Fatalf("version should need no daemon, got %+v %v", cmd, err)
	}
	if _, err := buildCommand("dance", nil); err == nil {
		t.Fatal("expected unknown command error")
	}
}
