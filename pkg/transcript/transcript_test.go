package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestRewriteLoadRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	recs := []Record{
		{Role: "user", Message: "read my notes"},
		{
			Role:    "agent",
			Message: "Here they are.",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "read_file", Arguments: `{"path":"notes.txt"}`},
			},
			Usage: &llm.Usage{PromptTokens: 40, CompletionTokens: 12, TotalTokens: 52},
		},
	}
	if err := s.Rewrite(ctx, "scribe", recs); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	got, err := s.Load(ctx, "scribe")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records=%+v", got)
	}
	if got[0].Role != "user" || got[0].Message != "read my notes" {
		t.Fatalf("record 0 = %+v", got[0])
	}
	if got[0].ToolCalls != nil || got[0].Usage != nil {
		t.Fatalf("record 0 carries extras: %+v", got[0])
	}
	if len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].Name != "read_file" {
		t.Fatalf("record 1 tool calls = %+v", got[1].ToolCalls)
	}
	if got[1].Usage == nil || got[1].Usage.TotalTokens != 52 {
		t.Fatalf("record 1 usage = %+v", got[1].Usage)
	}
}

func TestRewriteReplacesWholesale(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first := []Record{{Role: "user", Message: "one"}, {Role: "agent", Message: "two"}}
	if err := s.Rewrite(ctx, "a", first); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	second := []Record{{Role: "user", Message: "three"}}
	if err := s.Rewrite(ctx, "a", second); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Message != "three" {
		t.Fatalf("records=%+v", got)
	}
}

func TestAgentsIsolated(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Rewrite(ctx, "a", []Record{{Role: "user", Message: "for a"}}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := s.Rewrite(ctx, "b", []Record{{Role: "user", Message: "for b"}}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("a not cleared: %+v", got)
	}
	got, err = s.Load(ctx, "b")
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if len(got) != 1 || got[0].Message != "for b" {
		t.Fatalf("b lost records: %+v", got)
	}
}

func TestLoadMissingAgent(t *testing.T) {
	s := openTest(t)
	got, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("records=%+v", got)
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := Open(context.Background(), "mysql://nope"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestLockSerializesPerAgent(t *testing.T) {
	s := openTest(t)
	unlock := s.Lock("a")
	done := make(chan struct{})
	go func() {
		u := s.Lock("a")
		u()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("second lock acquired while first held")
	default:
	}
	// A different agent must not contend.
	u := s.Lock("b")
	u()
	unlock()
	<-done
}
