package memory

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dcgate/dcgate/internal/domain"
)

const testCID = "AA5TDLSBOZHPAUOHBSO6YDIKD7EQLRS3DYHDVQ7"

func newTestEngine() *Engine {
	e := New(slog.New(slog.DiscardHandler))
	e.AddUser(testCID, "alice")
	return e
}

func TestFilelistOpen(t *testing.T) {
	e := newTestEngine()

	fl, err := e.Filelists.Open(testCID, "")
	if err != nil {
		t.Fatal(err)
	}
	if fl.Directory() != "/" {
		t.Fatalf("got directory %q, want /", fl.Directory())
	}
	if fl.State() != "loaded" {
		t.Fatalf("got state %q, want loaded", fl.State())
	}

	if _, err := e.Filelists.Open(testCID, ""); !errors.Is(err, domain.ErrExists) {
		t.Fatalf("duplicate open: got %v", err)
	}
	if _, err := e.Filelists.Open("UNKNOWNCIDUNKNOWNCIDUNKNOWNCIDUNKNOWN77", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	if err := e.Filelists.Close(testCID); err != nil {
		t.Fatal(err)
	}
	if err := e.Filelists.Close(testCID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("close twice: got %v", err)
	}
}

type chatEvents struct {
	messages []domain.Message
	updated  int
}

func (e *chatEvents) ChatCreated(domain.PrivateChat) {}
func (e *chatEvents) ChatRemoved(domain.PrivateChat) {}
func (e *chatEvents) ChatUpdated(domain.PrivateChat) { e.updated++ }
func (e *chatEvents) ChatMessage(_ domain.PrivateChat, msg domain.Message) {
	e.messages = append(e.messages, msg)
}

func TestChatDeliver(t *testing.T) {
	e := newTestEngine()
	events := &chatEvents{}
	e.Chats.AddChatListener(events)

	c, err := e.Chats.Open(testCID)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Chats.Deliver(testCID, "hey"); err != nil {
		t.Fatal(err)
	}
	if len(events.messages) != 1 || events.messages[0].Text != "hey" {
		t.Fatalf("got messages %+v", events.messages)
	}
	if events.updated != 1 {
		t.Fatalf("got %d updated events, want 1", events.updated)
	}
	if c.UnreadCount() != 1 {
		t.Fatalf("got unread %d, want 1", c.UnreadCount())
	}
	c.SetRead()
	if c.UnreadCount() != 0 {
		t.Fatalf("got unread %d after read, want 0", c.UnreadCount())
	}

	if err := e.Chats.Deliver("UNKNOWNCIDUNKNOWNCIDUNKNOWNCIDUNKNOWN77", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deliver to unknown chat: got %v", err)
	}
}

func TestExtensionLifecycle(t *testing.T) {
	e := newTestEngine()

	if _, err := e.Extensions.Install("airdcpp-release-validator", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extensions.Install("airdcpp-release-validator", ""); !errors.Is(err, domain.ErrExists) {
		t.Fatalf("duplicate install: got %v", err)
	}

	if err := e.Extensions.Start("airdcpp-release-validator"); err != nil {
		t.Fatal(err)
	}
	if err := e.Extensions.Start("airdcpp-release-validator"); !errors.Is(err, domain.ErrExists) {
		t.Fatalf("start twice: got %v", err)
	}
	ext, err := e.Extensions.Extension("airdcpp-release-validator")
	if err != nil {
		t.Fatal(err)
	}
	if !ext.Running {
		t.Fatal("extension not marked running")
	}

	if err := e.Extensions.Stop("airdcpp-release-validator"); err != nil {
		t.Fatal(err)
	}
	if err := e.Extensions.Remove("airdcpp-release-validator"); err != nil {
		t.Fatal(err)
	}
	if err := e.Extensions.Remove("airdcpp-release-validator"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove twice: got %v", err)
	}
}

type awayEvents struct {
	changes []bool
}

func (e *awayEvents) AwayChanged(away bool) { e.changes = append(e.changes, away) }

func TestSystemAway(t *testing.T) {
	e := newTestEngine()
	events := &awayEvents{}
	e.System.AddSystemListener(events)

	e.System.SetAway(true)
	e.System.SetAway(true) // no change, no event
	e.System.SetAway(false)

	if len(events.changes) != 2 {
		t.Fatalf("got %d away events, want 2", len(events.changes))
	}
	if !events.changes[0] || events.changes[1] {
		t.Fatalf("got changes %v", events.changes)
	}
}

func TestSystemStatsUptime(t *testing.T) {
	e := newTestEngine()
	e.System.SetStats(domain.Stats{ActiveSessions: 3})

	stats := e.System.Stats()
	if stats.ActiveSessions != 3 {
		t.Fatalf("got %+v", stats)
	}
	if stats.UptimeSeconds < 0 {
		t.Fatalf("negative uptime %d", stats.UptimeSeconds)
	}
}
