package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"courtline/internal/logging"
)

func TestContextAttrsAreAppended(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(slog.LevelInfo, "text", &buf))
	ctx := logging.WithAttrs(context.Background(), slog.String("case_id", "case-1"))
	ctx = logging.WithAttrs(ctx, slog.String("witness", "Nurse Hall"))
	logger.InfoContext(ctx, "present evidence")
	out := buf.String()
	if !strings.Contains(out, "case_id=case-1") || !strings.Contains(out, `witness="Nurse Hall"`) {
		t.Fatalf("missing context attrs: %s", out)
	}
}

func TestJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(logging.ParseLevel("warn"), "json", &buf))
	logger.Info("hidden")
	logger.Warn("shown", slog.String("component", "events"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"events"`) {
		t.Fatalf("expected json output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
