package main

import (
	"testing"

	"github.com/resolving/chatsync/pkg/models"
)

func TestBuildRootCmd(t *testing.T) {
	root := buildRootCmd()

	want := []string{"run", "admin"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestParseMuteDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    models.MuteDuration
		wantErr bool
	}{
		{in: "forever", want: models.MuteForever()},
		{in: "10m", want: models.MuteTenMinutes()},
		{in: "1h", want: models.MuteOneHour()},
		{in: "45", want: models.MuteCustom(45)},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMuteDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMuteDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMuteDuration(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestArgInt64(t *testing.T) {
	fields := []string{"/delete", "42", "x"}
	if v, ok := argInt64(fields, 1); !ok || v != 42 {
		t.Errorf("argInt64 index 1 = %d, %v", v, ok)
	}
	if _, ok := argInt64(fields, 2); ok {
		t.Error("non-numeric argument parsed")
	}
	if _, ok := argInt64(fields, 5); ok {
		t.Error("out-of-range index parsed")
	}
}
