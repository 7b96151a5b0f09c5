package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scoredesk/internal/logs"
)

func TestLastKeepsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoredesk.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5, nil)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestSubmissionFilter(t *testing.T) {
	filter := logs.SubmissionFilter(42)
	cases := []struct {
		line string
		want bool
	}{
		{`time=... level=INFO msg="status applied" submission_id=42 status=done`, true},
		{`time=... level=INFO msg="status applied" submission_id=420`, false},
		{`{"msg":"status applied","submission_id":42}`, true},
		{`{"msg":"status applied","submission_id":4}`, false},
		{`level=INFO msg=started`, false},
	}
	for _, tc := range cases {
		if got := filter(tc.line); got != tc.want {
			t.Errorf("filter(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoredesk.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, logs.SubmissionFilter(7), func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			cancel()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("other submission_id=8\nwatch submission_id=7\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("follow did not see the appended line")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "watch submission_id=7" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestFollowRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoredesk.log")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines := make(chan string, 4)
	go func() {
		_ = logs.Follow(ctx, path, 1000, 10*time.Millisecond, nil, func(line string) { lines <- line })
	}()

	select {
	case line := <-lines:
		if line != "x" {
			t.Fatalf("expected re-read from start, got %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no line after truncation")
	}
}
