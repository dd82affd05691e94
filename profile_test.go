package mask

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func profilePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "WHO.md")
}

func TestNewProfileManagerWritesSkeleton(t *testing.T) {
	path := profilePath(t)
	p, err := NewProfileManager(&fakeProvider{}, path, nil)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	if got := p.Profile(); !strings.Contains(got, profileMarker) {
		t.Errorf("skeleton missing marker: %q", got)
	}
}

func TestNewProfileManagerKeepsExistingFile(t *testing.T) {
	path := profilePath(t)
	existing := "# User Profile\n\n- Name: Ada\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewProfileManager(&fakeProvider{}, path, nil)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	if got := p.Profile(); got != existing {
		t.Errorf("Profile = %q, want existing content preserved", got)
	}
}

func TestProfileUpdateNoUpdateSentinel(t *testing.T) {
	path := profilePath(t)
	p, err := NewProfileManager(&fakeProvider{replies: []string{"NO_UPDATE"}}, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := p.Profile()
	if err := p.Update(context.Background(), "I am hungry"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := p.Profile(); got != before {
		t.Errorf("profile changed on NO_UPDATE: %q", got)
	}
}

func TestProfileUpdateRejectsProseReply(t *testing.T) {
	path := profilePath(t)
	p, err := NewProfileManager(&fakeProvider{replies: []string{"Sure! The user likes tea."}}, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := p.Profile()
	if err := p.Update(context.Background(), "I like tea"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := p.Profile(); got != before {
		t.Errorf("profile overwritten by prose reply: %q", got)
	}
}

func TestProfileUpdateAcceptsRewrite(t *testing.T) {
	path := profilePath(t)
	rewritten := "# User Profile\n\n## Personal Information\n- Name: Ada\n"
	p, err := NewProfileManager(&fakeProvider{replies: []string{rewritten}}, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Update(context.Background(), "my name is Ada"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := p.Profile(); !strings.Contains(got, "Name: Ada") {
		t.Errorf("profile not rewritten: %q", got)
	}
}

func TestProfileWorkerDrainsQueue(t *testing.T) {
	path := profilePath(t)
	rewritten := "# User Profile\n\n- Name: Ada\n"
	p, err := NewProfileManager(&fakeProvider{replyFn: func([]ChatMessage) (string, error) {
		return rewritten, nil
	}}, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	w := NewProfileWorker(p, nil)
	w.Enqueue("my name is Ada")
	w.Close() // drains before returning

	if got := p.Profile(); !strings.Contains(got, "Name: Ada") {
		t.Errorf("worker did not apply update: %q", got)
	}
}

func TestProfileWorkerDropsWhenFull(t *testing.T) {
	path := profilePath(t)
	block := make(chan struct{})
	p, err := NewProfileManager(&fakeProvider{replyFn: func([]ChatMessage) (string, error) {
		<-block
		return "NO_UPDATE", nil
	}}, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	w := NewProfileWorker(p, nil)
	// One update blocks in flight; fill the queue past capacity. Enqueue must
	// never block even when everything is backed up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 40; i++ {
			w.Enqueue("message")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	close(block)
	w.Close()
}
