package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func invoke(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func buildAnimals(t *testing.T, codec string) (dir, indexPath string) {
	t.Helper()
	dir = t.TempDir()
	dataset := writeFile(t, dir, "corpus.tsv", []byte("1\tcat dog\n2\tdog bird\n3\tcat bird\n"))
	indexPath = filepath.Join(dir, "inverted.index")
	code, stdout, stderr := invoke(t, "", "build", "-dataset", dataset, "-output", indexPath, "-codec", codec)
	if code != apperrors.ExitOK {
		t.Fatalf("build exit = %d, stderr:\n%s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("build wrote to stdout: %q", stdout)
	}
	return dir, indexPath
}

func TestBuildThenQuery(t *testing.T) {
	for _, codec := range []string{"binary", "json", "struct"} {
		t.Run(codec, func(t *testing.T) {
			dir, indexPath := buildAnimals(t, codec)
			queries := writeFile(t, dir, "queries.txt", []byte("cat\ncat dog\nnonexistent term\n"))

			code, stdout, stderr := invoke(t, "", "query", "-index", indexPath, "-codec", codec, "--query-file-utf8", queries)
			if code != apperrors.ExitOK {
				t.Fatalf("query exit = %d, stderr:\n%s", code, stderr)
			}
			if want := "1,3\n1\n\n"; stdout != want {
				t.Errorf("stdout = %q, want %q", stdout, want)
			}
		})
	}
}

func TestQueryCP1251(t *testing.T) {
	dir := t.TempDir()
	dataset := writeFile(t, dir, "corpus.tsv", []byte("1\tкот пёс\n2\tкот\n"))
	indexPath := filepath.Join(dir, "inverted.index")
	if code, _, stderr := invoke(t, "", "build", "-dataset", dataset, "-output", indexPath); code != 0 {
		t.Fatalf("build exit = %d, stderr:\n%s", code, stderr)
	}
	// "кот\nкот пёс\n" in Windows-1251.
	raw := []byte{0xEA, 0xEE, 0xF2, '\n', 0xEA, 0xEE, 0xF2, ' ', 0xEF, 0xB8, 0xF1, '\n'}
	queries := writeFile(t, dir, "queries.cp1251", raw)

	code, stdout, stderr := invoke(t, "", "query", "-index", indexPath, "--query-file-cp1251", queries)
	if code != apperrors.ExitOK {
		t.Fatalf("query exit = %d, stderr:\n%s", code, stderr)
	}
	if want := "1,2\n1\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestQueryFromStdin(t *testing.T) {
	_, indexPath := buildAnimals(t, "struct")
	code, stdout, stderr := invoke(t, "bird\ndog cat\n", "query", "-index", indexPath)
	if code != apperrors.ExitOK {
		t.Fatalf("query exit = %d, stderr:\n%s", code, stderr)
	}
	if want := "2,3\n1\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestQueryWithUnreachableCache(t *testing.T) {
	t.Setenv("INVINDEX_REDIS_ADDR", "127.0.0.1:1")
	_, indexPath := buildAnimals(t, "binary")
	code, stdout, stderr := invoke(t, "cat dog\n", "query", "-index", indexPath)
	if code != apperrors.ExitOK {
		t.Fatalf("query exit = %d, stderr:\n%s", code, stderr)
	}
	if stdout != "1\n" {
		t.Errorf("stdout = %q, want %q", stdout, "1\n")
	}
	if !strings.Contains(stderr, "query cache disabled") {
		t.Errorf("stderr does not report the disabled cache:\n%s", stderr)
	}
}

func TestCacheClearUnreachable(t *testing.T) {
	t.Setenv("INVINDEX_REDIS_ADDR", "127.0.0.1:1")
	code, stdout, stderr := invoke(t, "", "cache-clear")
	if code != apperrors.ExitFailure {
		t.Fatalf("exit = %d, want %d; stderr:\n%s", code, apperrors.ExitFailure, stderr)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "invindex cache-clear:") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestStats(t *testing.T) {
	_, indexPath := buildAnimals(t, "json")
	code, stdout, stderr := invoke(t, "", "stats", "-index", indexPath)
	if code != apperrors.ExitOK {
		t.Fatalf("stats exit = %d, stderr:\n%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "terms\t3\ndocuments\t3\nfingerprint\t") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestMetricsTextfile(t *testing.T) {
	dir, indexPath := buildAnimals(t, "binary")
	prom := filepath.Join(dir, "invindex.prom")
	t.Setenv("INVINDEX_METRICS_TEXTFILE", prom)

	code, _, stderr := invoke(t, "cat\nfish\n", "query", "-index", indexPath)
	if code != apperrors.ExitOK {
		t.Fatalf("query exit = %d, stderr:\n%s", code, stderr)
	}
	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("reading metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `invindex_queries_total{result_type="empty"} 1`) {
		t.Errorf("textfile missing query counter:\n%s", data)
	}
}

func TestExitCodes(t *testing.T) {
	dir, indexPath := buildAnimals(t, "binary")
	queries := writeFile(t, dir, "queries.txt", []byte("cat\n"))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, apperrors.ExitUsage},
		{"unknown command", []string{"serve"}, apperrors.ExitUsage},
		{"unknown flag", []string{"query", "-bogus"}, apperrors.ExitUsage},
		{"stray argument", []string{"stats", "-index", indexPath, "extra"}, apperrors.ExitUsage},
		{"help", []string{"query", "-h"}, apperrors.ExitOK},
		{"cache-clear argument", []string{"cache-clear", "now"}, apperrors.ExitUsage},
		{"both query files", []string{"query", "-index", indexPath, "--query-file-utf8", queries, "--query-file-cp1251", queries}, apperrors.ExitUsage},
		{"unknown codec", []string{"build", "-codec", "pickle"}, apperrors.ExitUsage},
		{"missing dataset", []string{"build", "-dataset", filepath.Join(dir, "absent.tsv"), "-output", filepath.Join(dir, "x")}, apperrors.ExitFailure},
		{"missing index", []string{"query", "-index", filepath.Join(dir, "absent.index"), "--query-file-utf8", queries}, apperrors.ExitFailure},
		{"missing query file", []string{"query", "-index", indexPath, "--query-file-utf8", filepath.Join(dir, "absent.txt")}, apperrors.ExitFailure},
		{"codec mismatch", []string{"query", "-index", indexPath, "-codec", "json", "--query-file-utf8", queries}, apperrors.ExitFailure},
		{"missing config", []string{"stats", "-config", filepath.Join(dir, "absent.yaml")}, apperrors.ExitFailure},
		{"malformed config", []string{"stats", "-config", writeFile(t, dir, "bad.yaml", []byte("indexer: [unclosed"))}, apperrors.ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := invoke(t, "", tt.args...)
			if code != tt.want {
				t.Errorf("exit = %d, want %d", code, tt.want)
			}
			if tt.want != apperrors.ExitOK && stdout != "" {
				t.Errorf("failure wrote to stdout: %q", stdout)
			}
		})
	}
}
