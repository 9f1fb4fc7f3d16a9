package gitsource

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{name: "https", url: "https://github.com/ana/cuvinte.git", expected: filepath.Join("repos", "github.com", "ana", "cuvinte")},
		{name: "https without suffix", url: "https://gitlab.com/group/sub/words", expected: filepath.Join("repos", "gitlab.com", "group", "sub", "words")},
		{name: "scp-like ssh", url: "git@github.com:ana/cuvinte.git", expected: filepath.Join("repos", "github.com", "ana", "cuvinte")},
		{name: "ssh scheme", url: "ssh://git@example.com/ana/cuvinte.git", expected: filepath.Join("repos", "example.com", "ana", "cuvinte")},
		{name: "host only", url: "https://github.com/", wantErr: true},
		{name: "not a url", url: "just words", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q, got %q", tc.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
