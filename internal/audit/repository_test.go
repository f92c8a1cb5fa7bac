package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-eufy/internal/bridges/eufy"
	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-eufy/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateFillsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	log := &AuditLog{Action: ActionBridgeStart}
	if err := repo.Create(ctx, log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(log.ID) != len("aud-")+8 || log.ID[:4] != "aud-" {
		t.Errorf("ID = %q, want aud- prefix", log.ID)
	}
	if log.CreatedAt.IsZero() || log.Source != "system" || log.Result != ResultSuccess {
		t.Errorf("defaults not applied: %+v", log)
	}

	if err := repo.Create(ctx, &AuditLog{}); err == nil {
		t.Error("Create() without action succeeded")
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: ActionCommand, DeviceID: "plug", Command: "on", Source: "mqtt", CreatedAt: base},
		{Action: ActionCommand, DeviceID: "bulb", Command: "set_rgb", Source: "api", Result: ResultFailure, Error: "device unreachable", CreatedAt: base.Add(time.Minute)},
		{Action: ActionCommand, DeviceID: "plug", Command: "off", Source: "mqtt", CreatedAt: base.Add(2 * time.Minute)},
		{Action: ActionBridgeStop, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all", Filter{}, 4, ActionBridgeStop},
		{"by device", Filter{DeviceID: "plug"}, 2, "off"},
		{"by action", Filter{Action: ActionCommand}, 3, "off"},
		{"by result", Filter{Result: ResultFailure}, 1, "set_rgb"},
		{"since", Filter{Action: ActionCommand, Since: base.Add(time.Minute)}, 2, "off"},
		{"offset", Filter{DeviceID: "plug", Limit: 1, Offset: 1}, 2, "on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Logs) == 0 {
				t.Fatal("no logs returned")
			}
			first := res.Logs[0].Command
			if first == "" {
				first = res.Logs[0].Action
			}
			if first != tt.wantFirst {
				t.Errorf("first = %q, want %q", first, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Result: ResultFailure})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := res.Logs[0]; got.Error != "device unreachable" || got.Source != "api" || !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("round-tripped entry = %+v", got)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := newTestRepo(t)

	tests := []struct {
		limit, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{500, maxLimit},
		{10, 10},
	}
	for _, tt := range tests {
		res, err := repo.List(context.Background(), Filter{Limit: tt.limit, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != tt.want || res.Offset != 0 {
			t.Errorf("List(limit=%d) = limit %d offset %d, want %d 0", tt.limit, res.Limit, res.Offset, tt.want)
		}
		if res.Logs == nil {
			t.Error("Logs = nil, want empty slice")
		}
	}
}

// failingRepo returns an error from every call.
type failingRepo struct{}

var errRepo = errors.New("repo: disk full")

func (failingRepo) Create(context.Context, *AuditLog) error { return errRepo }
func (failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errRepo
}

func TestCommandRecorder(t *testing.T) {
	repo := newTestRepo(t)
	rec := NewCommandRecorder(repo)
	ctx := context.Background()

	if err := rec.RecordCommand(ctx, eufy.CommandRecord{
		CommandID: "c1", DeviceID: "bulb", Command: "set_brightness", Source: "api", Success: true,
	}); err != nil {
		t.Fatalf("RecordCommand() error = %v", err)
	}
	if err := rec.RecordCommand(ctx, eufy.CommandRecord{
		CommandID: "c2", DeviceID: "bulb", Command: "set_rgb", Source: "mqtt", Error: "capability not supported",
	}); err != nil {
		t.Fatalf("RecordCommand() error = %v", err)
	}

	res, err := repo.List(ctx, Filter{DeviceID: "bulb"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2", res.Total)
	}
	results := map[string]string{}
	for _, l := range res.Logs {
		if l.Action != ActionCommand {
			t.Errorf("Action = %q, want command", l.Action)
		}
		results[l.Command] = l.Result
	}
	if results["set_brightness"] != ResultSuccess || results["set_rgb"] != ResultFailure {
		t.Errorf("results = %v", results)
	}

	if err := NewCommandRecorder(failingRepo{}).RecordCommand(ctx, eufy.CommandRecord{}); !errors.Is(err, errRepo) {
		t.Errorf("RecordCommand() error = %v, want errRepo", err)
	}
}
