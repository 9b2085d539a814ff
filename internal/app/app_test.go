package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"infoscreen/internal/display"
	"infoscreen/internal/scheduler"
)

const testConfig = `
logging:
  level: error
  console: true
display:
  driver: memory
  width: 160
  height: 120
layout:
  rows: 2
  cols: 2
scheduler:
  populate_wait: 50ms
  regular_timeout: 1s
widgets:
  - name: Clock
    enabled: true
    row: "0"
    col: 0-1
  - name: motd
    kind: text
    enabled: true
    row: "1"
    col: "0"
    options:
      text: hello
  - name: off
    kind: text
    enabled: false
    row: "1"
    col: "1"
    options:
      text: later
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStartPopulatesAndStops(t *testing.T) {
	t.Parallel()
	sink := display.NewMemory(160, 120)
	a, err := New(writeConfig(t, testConfig), WithSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	infos := a.Scheduler().Widgets()
	if len(infos) != 2 || infos[0].Name != "Clock" || !infos[0].FastUpdate {
		t.Fatalf("widgets = %+v", infos)
	}
	if got := a.Scheduler().TickInterval(); got != time.Second {
		t.Fatalf("tick = %s, want 1s", got)
	}
	modes := sink.Modes()
	if len(modes) == 0 || modes[0] != display.FullFlash {
		t.Fatalf("first push = %v, want full flash", modes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopSIGTERM); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if a.Err() != nil {
		t.Fatalf("Err = %v", a.Err())
	}
}

func TestPreviewRegularWidget(t *testing.T) {
	t.Parallel()
	sink := display.NewMemory(160, 120)
	a, err := New(writeConfig(t, testConfig), WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	// disabled widgets can still be previewed
	rep, err := a.Preview(context.Background(), "off", PreviewOptions{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(rep.Steps) != 1 || rep.Steps[0].Mode != display.Full {
		t.Fatalf("steps = %+v", rep.Steps)
	}
	if modes := sink.Modes(); len(modes) != 1 || modes[0] != display.Full {
		t.Fatalf("modes = %v", modes)
	}
}

func TestPreviewUnknownWidget(t *testing.T) {
	t.Parallel()
	a, err := New(writeConfig(t, testConfig), WithSink(display.NewMemory(160, 120)))
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Preview(context.Background(), "nope", PreviewOptions{})
	if !errors.Is(err, scheduler.ErrUnknownWidget) {
		t.Fatalf("err = %v, want ErrUnknownWidget", err)
	}
}

func TestNewRejectsBadFullRefresh(t *testing.T) {
	t.Parallel()
	body := strings.Replace(testConfig, "  populate_wait: 50ms", "  populate_wait: 50ms\n  full_refresh: \"every hour\"", 1)
	_, err := New(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "scheduler.full_refresh") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseFullRefresh(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec    string
		wantNil bool
		wantErr bool
	}{
		{spec: "", wantNil: true},
		{spec: "0 * * * *"},
		{spec: "@hourly"},
		{spec: "0 0 3 * * *"},
		{spec: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		s, err := parseFullRefresh(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.spec, err)
		}
		if tt.wantErr {
			continue
		}
		if (s == nil) != tt.wantNil {
			t.Fatalf("%q: schedule nil = %v", tt.spec, s == nil)
		}
	}
}

func TestReasonFor(t *testing.T) {
	t.Parallel()
	if got := ReasonFor(os.Interrupt); got != StopSIGINT {
		t.Fatalf("ReasonFor(Interrupt) = %s", got)
	}
	if got := ReasonFor(os.Kill); got != StopUnknown {
		t.Fatalf("ReasonFor(Kill) = %s", got)
	}
}
