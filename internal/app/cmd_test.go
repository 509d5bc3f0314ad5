package app

import (
	"testing"
)

func TestParseCommand_DefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"serve", CommandServe},
		{"worker", CommandWorker},
		{"migrate", CommandMigrate},
		{"ingest", CommandIngest},
		{"backfill", CommandBackfill},
		{"discover", CommandDiscover},
		{"seed", CommandSeed},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		if got := ParseCommand([]string{tt.arg}); got != tt.want {
			t.Errorf("ParseCommand([%s]) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestParseCommand_UnknownDefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"backfill", "20"})
	if cmd != CommandBackfill {
		t.Errorf("ParseCommand([backfill 20]) = %q, want %q", cmd, CommandBackfill)
	}
}

func TestCommandArgs(t *testing.T) {
	if got := commandArgs([]string{"discover"}); got != nil {
		t.Errorf("commandArgs([discover]) = %v, want nil", got)
	}
	got := commandArgs([]string{"discover", "example.com"})
	if len(got) != 1 || got[0] != "example.com" {
		t.Errorf("commandArgs = %v, want [example.com]", got)
	}
}
