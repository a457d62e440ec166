package inputsink

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newTestSink() (*LogSink, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	return NewLogSink(logger), &buf
}

func TestLogSink_MoveRelLogsNonZero(t *testing.T) {
	sink, buf := newTestSink()
	if err := sink.MoveRel(1.5, -2.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "move") {
		t.Fatalf("expected move log line, got %q", buf.String())
	}
}

func TestLogSink_MoveRelSkipsZero(t *testing.T) {
	sink, buf := newTestSink()
	if err := sink.MoveRel(0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log for zero delta, got %q", buf.String())
	}
}

func TestLogSink_ButtonValidatesArgs(t *testing.T) {
	sink, _ := newTestSink()
	if err := sink.Button("middle", "down"); err == nil {
		t.Fatal("expected error for invalid button")
	}
	if err := sink.Button("left", "sideways"); err == nil {
		t.Fatal("expected error for invalid state")
	}
	if err := sink.Button("left", "down"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogSink_ScrollSkipsZero(t *testing.T) {
	sink, buf := newTestSink()
	if err := sink.Scroll(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log for zero scroll, got %q", buf.String())
	}
	if err := sink.Scroll(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "scroll") {
		t.Fatalf("expected scroll log line, got %q", buf.String())
	}
}
