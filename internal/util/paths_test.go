package util

import "testing"

func TestRunPaths(t *testing.T) {
	if got := RunPath("abc", AudioFile("")); got != "podcasts/abc/podcast.wav" {
		t.Errorf("unexpected audio path %q", got)
	}
	if got := RunPrefix("abc"); got != "podcasts/abc/" {
		t.Errorf("unexpected prefix %q", got)
	}
}

func TestValidRunID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"3f6c1c0e-8d0b-4a8e-9d55-0c1f3b7a9e21", true},
		{"run_1", true},
		{"", false},
		{"../etc", false},
		{"a/b", false},
		{"-leading", false},
	}
	for _, tt := range tests {
		if got := ValidRunID(tt.id); got != tt.valid {
			t.Errorf("ValidRunID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		title, want string
	}{
		{"Quantum Computing 101", "Quantum_Computing_101"},
		{"  Ünïcode: only?  ", "ncode_only"},
		{"???", "fallback"},
		{"", "fallback"},
	}
	for _, tt := range tests {
		if got := SafeFilename(tt.title, "fallback"); got != tt.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
	if AudioContentType("mp3") != "audio/mpeg" || AudioContentType("") != "audio/wav" {
		t.Error("unexpected audio content types")
	}
}
