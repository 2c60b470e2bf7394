package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/dbconfig"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/mcdev12/fieldofplay/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrAthleteNotFound = errors.New("athlete not found")
)

// Repository stores groups and athletes in Postgres or sqlite.
type Repository struct {
	db      *sql.DB
	driver  string
	queries *Queries
	clock   clockwork.Clock
}

// NewRepository creates a repository over an open database.
func NewRepository(db *sql.DB, driver string, clk clockwork.Clock) *Repository {
	ph := sqlutil.Dollar
	if driver == dbconfig.DriverSQLite {
		ph = sqlutil.Question
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Repository{
		db:      db,
		driver:  driver,
		queries: NewQueries(db, ph),
		clock:   clk,
	}
}

// Migrate creates the tables when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schemaFor(r.driver) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SaveGroup inserts or replaces a group and its athletes in one transaction.
func (r *Repository) SaveGroup(ctx context.Context, g *models.Group) error {
	rows := make([]AthleteRow, len(g.Athletes))
	for i, a := range g.Athletes {
		row, err := r.athleteToRow(g.ID, a)
		if err != nil {
			return err
		}
		rows[i] = row
	}

	err := sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *Queries) error {
		if err := q.UpsertGroup(ctx, GroupRow{
			ID:              g.ID,
			Name:            g.Name,
			Platform:        g.Platform,
			WeighInTime:     sqlutil.ToSqlTime(g.WeighInTime),
			CompetitionTime: sqlutil.ToSqlTime(g.CompetitionTime),
		}); err != nil {
			return fmt.Errorf("failed to upsert group: %w", err)
		}
		for _, row := range rows {
			if err := q.UpsertAthlete(ctx, row); err != nil {
				return fmt.Errorf("failed to upsert athlete %s: %w", row.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save group %s: %w", g.Name, err)
	}
	return nil
}

// LoadGroup reads a group with its athletes ordered by lot number.
func (r *Repository) LoadGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	row, err := r.queries.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	athleteRows, err := r.queries.ListAthletesByGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list athletes: %w", err)
	}

	g := r.dbGroupToModel(row)
	g.Athletes = make([]*models.Athlete, 0, len(athleteRows))
	for _, ar := range athleteRows {
		a, err := r.dbAthleteToModel(ar)
		if err != nil {
			return nil, err
		}
		g.Athletes = append(g.Athletes, a)
	}
	return g, nil
}

// ListGroups returns every group without its athletes.
func (r *Repository) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := r.queries.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	groups := make([]*models.Group, len(rows))
	for i, row := range rows {
		groups[i] = r.dbGroupToModel(row)
	}
	return groups, nil
}

// PersistAttemptResult writes the declarations and results of an athlete.
func (r *Repository) PersistAttemptResult(ctx context.Context, a *models.Athlete) error {
	attempts, err := marshalAttempts(a)
	if err != nil {
		return err
	}
	now := r.clock.Now().UTC()
	n, err := r.queries.UpdateAthleteAttempts(ctx, UpdateAthleteAttemptsParams{
		ID:        a.ID,
		Attempts:  attempts,
		UpdatedAt: sqlutil.ToSqlTime(&now),
	})
	if err != nil {
		return fmt.Errorf("failed to update attempts: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAthleteNotFound, a.ID)
	}
	return nil
}

func marshalAttempts(a *models.Athlete) (pqtype.NullRawMessage, error) {
	b, err := json.Marshal(a.Attempts)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("failed to marshal attempts: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func (r *Repository) athleteToRow(groupID uuid.UUID, a *models.Athlete) (AthleteRow, error) {
	attempts, err := marshalAttempts(a)
	if err != nil {
		return AthleteRow{}, err
	}
	now := r.clock.Now().UTC()
	return AthleteRow{
		ID:         a.ID,
		GroupID:    groupID,
		LotNumber:  int32(a.LotNumber),
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Team:       sqlutil.ToNullString(a.Team),
		Category:   sqlutil.ToNullString(a.Category),
		EntryTotal: int32(a.EntryTotal),
		BodyWeight: sqlutil.ToNullFloat64(a.BodyWeight),
		Withdrawn:  a.Withdrawn,
		Attempts:   attempts,
		UpdatedAt:  sqlutil.ToSqlTime(&now),
	}, nil
}

func (r *Repository) dbGroupToModel(row GroupRow) *models.Group {
	return &models.Group{
		ID:              row.ID,
		Name:            row.Name,
		Platform:        row.Platform,
		WeighInTime:     sqlutil.FromSqlTime(row.WeighInTime),
		CompetitionTime: sqlutil.FromSqlTime(row.CompetitionTime),
	}
}

func (r *Repository) dbAthleteToModel(row AthleteRow) (*models.Athlete, error) {
	a := &models.Athlete{
		ID:         row.ID,
		GroupID:    row.GroupID,
		LotNumber:  int(row.LotNumber),
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Team:       sqlutil.FromSqlString(row.Team, ""),
		Category:   sqlutil.FromSqlString(row.Category, ""),
		EntryTotal: int(row.EntryTotal),
		BodyWeight: sqlutil.FromSqlFloat64(row.BodyWeight),
		Withdrawn:  row.Withdrawn,
	}
	if row.Attempts.Valid && len(row.Attempts.RawMessage) > 0 {
		if err := json.Unmarshal(row.Attempts.RawMessage, &a.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempts of %s: %w", row.ID, err)
		}
	}
	return a, nil
}
