package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/netn10/learn-romanian/internal/domain"
)

func run(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dbPath, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, dbPath, stdin, args...)
	if err != nil {
		t.Fatalf("%v returned an unexpected error: %v", args, err)
	}
	return out
}

func testPaths(t *testing.T) (dbPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	return filepath.Join(dir, "learnro.db"), dir
}

func writeWordList(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestParseCommand(t *testing.T) {
	dbPath, dir := testPaths(t)
	list := filepath.Join(dir, "words.txt")
	writeWordList(t, list, "Drinks\nvin / vinul: wine\n")

	out := mustRun(t, dbPath, "", "parse", list)
	want := "vin / vinul: wine\nvin: wine\nvinul: wine\n"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}

	out = mustRun(t, dbPath, "apă: water\n", "parse", "--json", "-")
	var pairs []domain.ParsedPair
	if err := json.Unmarshal([]byte(out), &pairs); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if len(pairs) != 1 || pairs[0].Romanian != "apă" || pairs[0].English != "water" {
		t.Errorf("Unexpected pairs: %+v", pairs)
	}

	if _, err := run(t, dbPath, "", "parse", filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestImportAndList(t *testing.T) {
	dbPath, dir := testPaths(t)
	list := filepath.Join(dir, "food.txt")
	writeWordList(t, list, "apă: water\npâine: bread\n")

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "import", args: []string{"import", list, "--tag", "Food"}, want: "Successfully added 2 cards (0 skipped, 2 parsed)"},
		{name: "import again", args: []string{"import", list}, want: "Successfully added 0 cards (2 skipped, 2 parsed)"},
		{name: "dry run", args: []string{"import", list, "--dry-run", "--allow-duplicates"}, want: "Would import 2 pairs"},
		{name: "list", args: []string{"cards", "list", "--order-by", "romanian"}, want: "2 of 2 cards"},
		{name: "filter", args: []string{"cards", "list", "--filter", "romanian.startsWith('p')"}, want: "1 of 1 cards"},
		{name: "page", args: []string{"cards", "list", "--page", "2", "--page-size", "1"}, want: "1 of 2 cards"},
		{name: "tags", args: []string{"cards", "tags"}, want: "food"},
		{name: "add", args: []string{"cards", "add", "--romanian", "mere", "--english", "apples"}, want: "Card created: "},
		{name: "search", args: []string{"cards", "list", "-s", "APPLE"}, want: "1 of 1 cards"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := mustRun(t, dbPath, "", tc.args...)
			if !strings.Contains(out, tc.want) {
				t.Errorf("Expected output to contain %q, got %q", tc.want, out)
			}
		})
	}

	t.Run("rejects", func(t *testing.T) {
		for _, args := range [][]string{
			{"cards", "list", "--filter", "english == 'x'"},
			{"cards", "list", "--page", "0"},
			{"cards", "add", "--romanian", "x"},
			{"import", filepath.Join(dir, "nothing.txt")},
		} {
			if _, err := run(t, dbPath, "", args...); err == nil {
				t.Errorf("%v: expected an error", args)
			}
		}
	})
}

func TestImportEmptyList(t *testing.T) {
	dbPath, _ := testPaths(t)
	if _, err := run(t, dbPath, "just a title\n", "import", "-"); err == nil {
		t.Error("Expected an error when no pairs are found")
	}
}

func TestCardsDelete(t *testing.T) {
	dbPath, _ := testPaths(t)
	out := mustRun(t, dbPath, "", "cards", "add", "--romanian", "ceai", "--english", "tea")
	id := strings.TrimSpace(strings.TrimPrefix(out, "Card created: "))

	out = mustRun(t, dbPath, "", "cards", "delete", id)
	if !strings.Contains(out, "Card deleted: "+id) {
		t.Errorf("Unexpected output: %q", out)
	}

	_, err := run(t, dbPath, "", "cards", "delete", id)
	if !errors.Is(err, domain.ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound, got %v", err)
	}
}

func TestSourceAndSync(t *testing.T) {
	dbPath, dir := testPaths(t)
	words := filepath.Join(dir, "words")
	if err := os.MkdirAll(words, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	writeWordList(t, filepath.Join(words, "fructe.txt"), "mere: apples\n")

	if out := mustRun(t, dbPath, "", "source", "add", words); !strings.Contains(out, "Source added: 1") {
		t.Errorf("Unexpected output: %q", out)
	}
	if _, err := run(t, dbPath, "", "source", "add", words); err == nil {
		t.Error("Expected a duplicate source to be rejected")
	}
	if _, err := run(t, dbPath, "", "source", "add", "x", "--type", "ftp"); err == nil {
		t.Error("Expected an unknown type to be rejected")
	}

	if out := mustRun(t, dbPath, "", "source", "list"); !strings.Contains(out, "never") || !strings.Contains(out, "local") {
		t.Errorf("Unexpected source list: %q", out)
	}

	if out := mustRun(t, dbPath, "", "sync"); !strings.Contains(out, words) {
		t.Errorf("Expected a report line for the source, got %q", out)
	}
	if out := mustRun(t, dbPath, "", "cards", "list", "--tag", "fructe"); !strings.Contains(out, "1 of 1 cards") {
		t.Errorf("Expected the synced card, got %q", out)
	}
	if out := mustRun(t, dbPath, "", "source", "list"); strings.Contains(out, "never") {
		t.Errorf("Expected last scanned to be set, got %q", out)
	}

	mustRun(t, dbPath, "", "source", "remove", "1")
	if _, err := run(t, dbPath, "", "source", "remove", "1"); !errors.Is(err, domain.ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound, got %v", err)
	}
	if _, err := run(t, dbPath, "", "source", "remove", "one"); err == nil {
		t.Error("Expected an invalid id to be rejected")
	}
}

func TestStudy(t *testing.T) {
	dbPath, _ := testPaths(t)
	mustRun(t, dbPath, "", "cards", "add", "--romanian", "apă", "--english", "water")

	t.Run("shuffled deck", func(t *testing.T) {
		out := mustRun(t, dbPath, "n\nr\nn\nbogus\nq\n", "study", "--shuffle", "--seed", "7")
		for _, want := range []string{
			"1 cards. Type h for help.",
			"[1/1 100%]",
			"  = ",
			"Deck complete! Dealing a new round.",
			`Unknown command "bogus"`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("timed locks reveal", func(t *testing.T) {
		out := mustRun(t, dbPath, "n\nr\ns\n", "study", "--timed", "--seconds", "30", "--allow-early-reveal=false")
		for _, want := range []string{
			"timer: 30s running",
			"The answer is locked until the timer ends.",
			"Time's up! = ",
			"timer: 0s expired",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("early reveal by default", func(t *testing.T) {
		out := mustRun(t, dbPath, "n\nr\n", "study", "--timed", "--seconds", "30")
		if strings.Contains(out, "The answer is locked") {
			t.Errorf("Expected the answer to be revealed, got %q", out)
		}
		if !strings.Contains(out, "  = water") {
			t.Errorf("Expected the answer, got %q", out)
		}
	})

	t.Run("no matching cards", func(t *testing.T) {
		if _, err := run(t, dbPath, "", "study", "--tag", "none"); err == nil {
			t.Error("Expected an error without cards")
		}
	})
}
