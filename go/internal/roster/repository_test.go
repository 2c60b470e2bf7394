package roster

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mcdev12/fieldofplay/go/internal/dbconfig"
	"github.com/mcdev12/fieldofplay/go/internal/models"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, dbconfig.DriverSQLite, clockwork.NewFakeClockAt(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)))
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func intPtr(v int) *int { return &v }

func sampleGroup() *models.Group {
	weighIn := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	g := &models.Group{
		ID:          uuid.New(),
		Name:        "W59 A",
		Platform:    "A",
		WeighInTime: &weighIn,
	}
	g.Athletes = []*models.Athlete{
		{ID: uuid.New(), GroupID: g.ID, LotNumber: 7, FirstName: "Ana", LastName: "Silva", Team: "BRA", EntryTotal: 190, BodyWeight: 58.4,
			Attempts: [models.TotalAttempts]models.Attempt{{Declaration: 85, ActualLift: intPtr(85)}, {Declaration: 88}}},
		{ID: uuid.New(), GroupID: g.ID, LotNumber: 3, LastName: "Lee", EntryTotal: 180,
			Attempts: [models.TotalAttempts]models.Attempt{{Declaration: 80}}},
	}
	return g
}

func TestRepositorySaveAndLoadGroup(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	g := sampleGroup()

	if err := repo.SaveGroup(ctx, g); err != nil {
		t.Fatalf("SaveGroup() failed: %v", err)
	}
	got, err := repo.LoadGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("LoadGroup() failed: %v", err)
	}

	if got.Name != "W59 A" || got.Platform != "A" {
		t.Errorf("group = %q on %q", got.Name, got.Platform)
	}
	if got.WeighInTime == nil || !got.WeighInTime.Equal(*g.WeighInTime) {
		t.Errorf("weigh-in = %v, want %v", got.WeighInTime, g.WeighInTime)
	}
	if got.CompetitionTime != nil {
		t.Errorf("competition time = %v, want nil", got.CompetitionTime)
	}
	if len(got.Athletes) != 2 || got.Athletes[0].LastName != "Lee" {
		t.Fatalf("athletes should come back ordered by lot, got %d", len(got.Athletes))
	}
	silva := got.Athletes[1]
	if silva.Team != "BRA" || silva.BodyWeight != 58.4 || silva.GroupID != g.ID {
		t.Errorf("athlete fields = %+v", silva)
	}
	if silva.Attempts[0].ActualLift == nil || *silva.Attempts[0].ActualLift != 85 || silva.Attempts[1].Declaration != 88 {
		t.Errorf("attempts = %+v", silva.Attempts)
	}
}

func TestRepositorySaveGroupReplaces(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	g := sampleGroup()
	if err := repo.SaveGroup(ctx, g); err != nil {
		t.Fatalf("SaveGroup() failed: %v", err)
	}

	g.Name = "W59 B"
	g.Athletes[1].EntryTotal = 185
	if err := repo.SaveGroup(ctx, g); err != nil {
		t.Fatalf("second SaveGroup() failed: %v", err)
	}

	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups() failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "W59 B" {
		t.Fatalf("groups = %+v", groups)
	}
	got, _ := repo.LoadGroup(ctx, g.ID)
	if got.Athletes[0].EntryTotal != 185 {
		t.Errorf("entry total = %d, want 185", got.Athletes[0].EntryTotal)
	}
}

func TestRepositoryPersistAttemptResult(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	g := sampleGroup()
	if err := repo.SaveGroup(ctx, g); err != nil {
		t.Fatalf("SaveGroup() failed: %v", err)
	}

	lee := g.Athletes[1].Clone()
	if err := lee.RecordResult(0, 80, false); err != nil {
		t.Fatalf("RecordResult() failed: %v", err)
	}
	if err := repo.PersistAttemptResult(ctx, lee); err != nil {
		t.Fatalf("PersistAttemptResult() failed: %v", err)
	}

	got, _ := repo.LoadGroup(ctx, g.ID)
	if a := got.Athletes[0].Attempts[0].ActualLift; a == nil || *a != -80 {
		t.Errorf("stored result = %v, want -80", a)
	}
}

func TestRepositoryNotFound(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	if _, err := repo.LoadGroup(ctx, uuid.New()); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("LoadGroup() error = %v, want ErrGroupNotFound", err)
	}
	stranger := &models.Athlete{ID: uuid.New(), LastName: "Nobody"}
	if err := repo.PersistAttemptResult(ctx, stranger); !errors.Is(err, ErrAthleteNotFound) {
		t.Errorf("PersistAttemptResult() error = %v, want ErrAthleteNotFound", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	g := sampleGroup()
	if err := m.SaveGroup(ctx, g); err != nil {
		t.Fatalf("SaveGroup() failed: %v", err)
	}

	loaded, err := m.LoadGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("LoadGroup() failed: %v", err)
	}
	if loaded.Athletes[0].LastName != "Lee" {
		t.Errorf("first athlete = %s, want lowest lot", loaded.Athletes[0].LastName)
	}
	loaded.Athletes[0].Attempts[0].Change1 = 90

	again, _ := m.LoadGroup(ctx, g.ID)
	if again.Athletes[0].Attempts[0].Change1 != 0 {
		t.Error("mutating a loaded group leaked into the store")
	}

	lee := loaded.Athletes[0]
	if err := m.PersistAttemptResult(ctx, lee); err != nil {
		t.Fatalf("PersistAttemptResult() failed: %v", err)
	}
	again, _ = m.LoadGroup(ctx, g.ID)
	if again.Athletes[0].Attempts[0].Change1 != 90 {
		t.Error("persisted change missing")
	}
	if err := m.PersistAttemptResult(ctx, &models.Athlete{ID: uuid.New()}); !errors.Is(err, ErrAthleteNotFound) {
		t.Errorf("error = %v, want ErrAthleteNotFound", err)
	}
}

func TestOpenMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), dbconfig.Config{Driver: dbconfig.DriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*Memory); !ok {
		t.Errorf("store = %T, want *Memory", store)
	}
}
