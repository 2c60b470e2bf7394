package roster

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the roster statements against one connection or transaction.
type Queries struct {
	db DBTX
	ph sqlutil.Placeholder
}

// NewQueries binds the statements to db using the driver's bind style.
func NewQueries(db DBTX, ph sqlutil.Placeholder) *Queries {
	return &Queries{db: db, ph: ph}
}

// WithTx returns queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, ph: q.ph}
}

func (q *Queries) bind(query string) string {
	return sqlutil.Rebind(q.ph, query)
}

type GroupRow struct {
	ID              uuid.UUID
	Name            string
	Platform        string
	WeighInTime     sql.NullTime
	CompetitionTime sql.NullTime
}

type AthleteRow struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	LotNumber  int32
	FirstName  string
	LastName   string
	Team       sql.NullString
	Category   sql.NullString
	EntryTotal int32
	BodyWeight sql.NullFloat64
	Withdrawn  bool
	Attempts   pqtype.NullRawMessage
	UpdatedAt  sql.NullTime
}

type UpdateAthleteAttemptsParams struct {
	ID        uuid.UUID
	Attempts  pqtype.NullRawMessage
	UpdatedAt sql.NullTime
}

const upsertGroup = `INSERT INTO lifting_groups (id, name, platform, weigh_in_time, competition_time)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    platform = excluded.platform,
    weigh_in_time = excluded.weigh_in_time,
    competition_time = excluded.competition_time`

func (q *Queries) UpsertGroup(ctx context.Context, arg GroupRow) error {
	_, err := q.db.ExecContext(ctx, q.bind(upsertGroup),
		arg.ID, arg.Name, arg.Platform, arg.WeighInTime, arg.CompetitionTime)
	return err
}

const upsertAthlete = `INSERT INTO athletes (id, group_id, lot_number, first_name, last_name, team, category,
    entry_total, body_weight, withdrawn, attempts, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    group_id = excluded.group_id,
    lot_number = excluded.lot_number,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    team = excluded.team,
    category = excluded.category,
    entry_total = excluded.entry_total,
    body_weight = excluded.body_weight,
    withdrawn = excluded.withdrawn,
    attempts = excluded.attempts,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertAthlete(ctx context.Context, arg AthleteRow) error {
	_, err := q.db.ExecContext(ctx, q.bind(upsertAthlete),
		arg.ID, arg.GroupID, arg.LotNumber, arg.FirstName, arg.LastName, arg.Team, arg.Category,
		arg.EntryTotal, arg.BodyWeight, arg.Withdrawn, arg.Attempts, arg.UpdatedAt)
	return err
}

const getGroup = `SELECT id, name, platform, weigh_in_time, competition_time
FROM lifting_groups WHERE id = ?`

func (q *Queries) GetGroup(ctx context.Context, id uuid.UUID) (GroupRow, error) {
	var g GroupRow
	err := q.db.QueryRowContext(ctx, q.bind(getGroup), id).
		Scan(&g.ID, &g.Name, &g.Platform, &g.WeighInTime, &g.CompetitionTime)
	return g, err
}

const listGroups = `SELECT id, name, platform, weigh_in_time, competition_time
FROM lifting_groups ORDER BY platform, competition_time, name`

func (q *Queries) ListGroups(ctx context.Context) ([]GroupRow, error) {
	rows, err := q.db.QueryContext(ctx, q.bind(listGroups))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GroupRow
	for rows.Next() {
		var g GroupRow
		if err := rows.Scan(&g.ID, &g.Name, &g.Platform, &g.WeighInTime, &g.CompetitionTime); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const listAthletesByGroup = `SELECT id, group_id, lot_number, first_name, last_name, team, category,
    entry_total, body_weight, withdrawn, attempts, updated_at
FROM athletes WHERE group_id = ? ORDER BY lot_number`

func (q *Queries) ListAthletesByGroup(ctx context.Context, groupID uuid.UUID) ([]AthleteRow, error) {
	rows, err := q.db.QueryContext(ctx, q.bind(listAthletesByGroup), groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AthleteRow
	for rows.Next() {
		var a AthleteRow
		if err := rows.Scan(
			&a.ID, &a.GroupID, &a.LotNumber, &a.FirstName, &a.LastName, &a.Team, &a.Category,
			&a.EntryTotal, &a.BodyWeight, &a.Withdrawn, &a.Attempts, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const updateAthleteAttempts = `UPDATE athletes SET attempts = ?, updated_at = ? WHERE id = ?`

// UpdateAthleteAttempts returns the number of rows changed.
func (q *Queries) UpdateAthleteAttempts(ctx context.Context, arg UpdateAthleteAttemptsParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.bind(updateAthleteAttempts), arg.Attempts, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
