package build_test

import (
	"testing"

	"github.com/rohmanhakim/nextmuni/internal/build"
)

func TestFullVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{
			name:    "default values",
			version: "dev",
			commit:  "none",
			want:    "dev+none",
		},
		{
			name:    "version with commit",
			version: "1.0.0",
			commit:  "abc123",
			want:    "1.0.0+abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion, origCommit := build.Version, build.Commit
			defer func() {
				build.Version, build.Commit = origVersion, origCommit
			}()

			build.Version = tt.version
			build.Commit = tt.commit

			if got := build.FullVersion(); got != tt.want {
				t.Errorf("FullVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	orig := build.Version
	defer func() { build.Version = orig }()

	build.Version = "1.2.3"
	if got := build.UserAgent(); got != "nextmuni/1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}

	build.Version = ""
	if got := build.UserAgent(); got != "nextmuni" {
		t.Errorf("UserAgent() with empty version = %q", got)
	}
}
