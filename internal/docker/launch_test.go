package docker

import (
	"errors"
	"testing"
)

func TestStartFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing binary", errors.New(`failed to create task: exec: "/engine": stat /engine: no such file or directory: unknown`), true},
		{"not in path", errors.New(`exec: "european_option": executable file not found in $PATH`), true},
		{"not executable", errors.New(`exec /engine: permission denied`), true},
		{"daemon error", errors.New("Cannot connect to the Docker daemon"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := startFailure(tt.err); got != tt.want {
				t.Errorf("startFailure(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnlaunchable(t *testing.T) {
	for code, want := range map[int]bool{0: false, 1: false, 124: false, 126: true, 127: true, 137: false} {
		if got := unlaunchable(code); got != want {
			t.Errorf("unlaunchable(%d) = %v, want %v", code, got, want)
		}
	}
}
