package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/settings"
)

type fakeController struct {
	applied []settings.Partial
	actions []game.Action
	current settings.Settings
	fail    error
}

func (f *fakeController) ApplySettings(p settings.Partial) error {
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, p)
	f.current = f.current.Merge(p)
	return nil
}

func (f *fakeController) HandleAction(a game.Action) error {
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeController) Settings() settings.Settings { return f.current }

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"settings", `{"type":"settings","settings":{"speed":4,"subsetCount":3}}`, false},
		{"action", `{"type":"action","action":"recenter"}`, false},
		{"get", `{"type":"get"}`, false},
		{"unknown type", `{"type":"warp"}`, true},
		{"missing settings", `{"type":"settings"}`, true},
		{"invalid settings", `{"type":"settings","settings":{"levelCount":0}}`, true},
		{"unknown action", `{"type":"action","action":"jump"}`, true},
		{"malformed", `{"type":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeCommand(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}

	c, err := DecodeCommand([]byte(`{"type":"settings","settings":{"speed":4,"isPlaying":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	if *c.Settings.Speed != 4 || !*c.Settings.Playing || c.Settings.SubsetCount != nil {
		t.Errorf("unexpected decoded settings: %+v", c.Settings)
	}
}

// drainN drains until n commands have been applied or the deadline passes.
func drainN(t *testing.T, s *Server, ctl Controller, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for applied := 0; applied < n; {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %d of %d commands", applied, n)
		}
		applied += s.Drain(ctl)
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func TestServerAppliesCommands(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := NewServer(nil)
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	c := dial(t, ctx, hs)
	defer c.Close(websocket.StatusNormalClosure, "")

	ctl := &fakeController{current: settings.Settings{Speed: 8}}

	if err := wsjson.Write(ctx, c, Command{Type: CommandSettings, Settings: &settings.Partial{Speed: settings.Float(2)}}); err != nil {
		t.Fatal(err)
	}
	if err := wsjson.Write(ctx, c, Command{Type: CommandAction, Action: "toggle-play"}); err != nil {
		t.Fatal(err)
	}
	drainN(t, s, ctl, 2)

	if *ctl.applied[0].Speed != 2 || ctl.actions[0] != game.ActionTogglePlay {
		t.Errorf("unexpected applied commands: %+v %v", ctl.applied, ctl.actions)
	}

	// Broadcast reaches the client
	s.Broadcast(ctl.Settings())
	var ev Event
	if err := wsjson.Read(ctx, c, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventSettings || ev.Settings == nil || ev.Settings.Speed != 2 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestServerReportsErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := NewServer(nil)
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	c := dial(t, ctx, hs)
	defer c.Close(websocket.StatusNormalClosure, "")

	// Rejected while decoding, never queued
	if err := wsjson.Write(ctx, c, map[string]string{"type": "warp"}); err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := wsjson.Read(ctx, c, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventError || !strings.Contains(ev.Error, "warp") {
		t.Errorf("expected decode error event, got %+v", ev)
	}

	// Rejected by the controller
	ctl := &fakeController{fail: errors.New("destroyed")}
	if err := wsjson.Write(ctx, c, Command{Type: CommandSettings, Settings: &settings.Partial{Speed: settings.Float(1)}}); err != nil {
		t.Fatal(err)
	}
	drainN(t, s, ctl, 1)
	if err := wsjson.Read(ctx, c, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventError || ev.Error != "destroyed" {
		t.Errorf("expected controller error event, got %+v", ev)
	}
}

func TestGetRepliesToSender(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := NewServer(nil)
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	c := dial(t, ctx, hs)
	defer c.Close(websocket.StatusNormalClosure, "")

	ctl := &fakeController{current: settings.Settings{Speed: 8, SubsetCount: 7}}
	if err := wsjson.Write(ctx, c, Command{Type: CommandGet}); err != nil {
		t.Fatal(err)
	}

	drainN(t, s, ctl, 1)

	var ev Event
	if err := wsjson.Read(ctx, c, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Settings == nil || ev.Settings.SubsetCount != 7 {
		t.Errorf("unexpected reply: %+v", ev)
	}
}
