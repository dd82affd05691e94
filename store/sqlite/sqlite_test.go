package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	mask "github.com/maskagent/mask"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("empty session id")
	}
	if sess.ProjectID != "" {
		t.Errorf("ProjectID = %q, want empty", sess.ProjectID)
	}

	if err := s.RenameSession(ctx, sess.ID, "My Chat"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "My Chat" {
		t.Errorf("Title = %q, want My Chat", got.Title)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, sess.ID); err == nil {
		t.Error("GetSession after delete: want error")
	}
}

func TestMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.AddMessage(ctx, sess.ID, "user", "hello"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := s.AddMessage(ctx, sess.ID, "assistant", "hi"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	msgs, err := s.GetMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].ID <= msgs[0].ID {
		t.Errorf("ids not increasing: %d then %d", msgs[0].ID, msgs[1].ID)
	}
}

func TestReplaceMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "t", "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.AddMessage(ctx, sess.ID, "user", "old"); err != nil {
			t.Fatal(err)
		}
	}

	err = s.ReplaceMessages(ctx, sess.ID, []mask.ChatMessage{
		mask.SystemMessage("Previous conversation summary: old stuff"),
	})
	if err != nil {
		t.Fatalf("ReplaceMessages: %v", err)
	}

	msgs, err := s.GetMessages(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Fatalf("msgs = %+v, want single summary message", msgs)
	}
}

func TestProjects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "research", "deep dives")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Color == "" || p.Icon == "" {
		t.Errorf("project defaults not set: %+v", p)
	}

	if err := s.UpdateProjectContext(ctx, p.ID, "findings so far"); err != nil {
		t.Fatalf("UpdateProjectContext: %v", err)
	}
	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.ContextSummary != "findings so far" {
		t.Errorf("ContextSummary = %q", got.ContextSummary)
	}

	sess, err := s.CreateSession(ctx, "t", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ProjectID != p.ID {
		t.Errorf("ProjectID = %q, want %q", sess.ProjectID, p.ID)
	}

	// Deleting the project detaches its sessions.
	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	got2, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got2.ProjectID != "" {
		t.Errorf("ProjectID = %q, want detached", got2.ProjectID)
	}
}
