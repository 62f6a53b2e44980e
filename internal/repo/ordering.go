package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// Ordering primitives. Within one partition (tasks sharing a status,
// prospects sharing a stage) positions form a dense run 0..N-1. Every
// helper here must run inside the same transaction as the entity write
// that motivates it, or the density invariant breaks under interleaving.
//
// None of these validate the target index: shifting past the end of the
// partition touches no rows, so an oversized index degrades to an append.

const (
	tableTasks     = "tasks"
	tableProspects = "prospects"
)

func partitionColumn(table string) string {
	if table == tableProspects {
		return "stage"
	}
	return "status"
}

// nextPosition returns the append slot for a partition: max+1, 0 when empty.
func nextPosition(ctx context.Context, tx *sql.Tx, table, partition string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(position)+1, 0) FROM %s WHERE %s=?`, table, partitionColumn(table))
	var pos int
	err := tx.QueryRowContext(ctx, query, partition).Scan(&pos)
	return pos, err
}

// makeRoom shifts every entity at or after index up by one, opening a slot.
func makeRoom(ctx context.Context, tx *sql.Tx, table, partition string, index int) error {
	query := fmt.Sprintf(`UPDATE %s SET position=position+1 WHERE %s=? AND position>=?`, table, partitionColumn(table))
	_, err := tx.ExecContext(ctx, query, partition, index)
	return err
}

// closeGap shifts every entity after index down by one, restoring density
// after a removal.
func closeGap(ctx context.Context, tx *sql.Tx, table, partition string, index int) error {
	query := fmt.Sprintf(`UPDATE %s SET position=position-1 WHERE %s=? AND position>?`, table, partitionColumn(table))
	_, err := tx.ExecContext(ctx, query, partition, index)
	return err
}

// shiftWithin redistributes the siblings strictly between oldIndex and
// newIndex for a move inside one partition. Direction depends on whether
// the entity travels forward or backward.
func shiftWithin(ctx context.Context, tx *sql.Tx, table, partition string, oldIndex, newIndex int) error {
	if newIndex == oldIndex {
		return nil
	}
	var query string
	var args []any
	if newIndex > oldIndex {
		query = fmt.Sprintf(`UPDATE %s SET position=position-1 WHERE %s=? AND position>? AND position<=?`, table, partitionColumn(table))
		args = []any{partition, oldIndex, newIndex}
	} else {
		query = fmt.Sprintf(`UPDATE %s SET position=position+1 WHERE %s=? AND position>=? AND position<?`, table, partitionColumn(table))
		args = []any{partition, newIndex, oldIndex}
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Task partition wrappers.

func (r Repo) NextTaskPosition(ctx context.Context, tx *sql.Tx, status string) (int, error) {
	return nextPosition(ctx, tx, tableTasks, status)
}

func (r Repo) MakeTaskRoom(ctx context.Context, tx *sql.Tx, status string, index int) error {
	return makeRoom(ctx, tx, tableTasks, status, index)
}

func (r Repo) CloseTaskGap(ctx context.Context, tx *sql.Tx, status string, index int) error {
	return closeGap(ctx, tx, tableTasks, status, index)
}

func (r Repo) ShiftTasksWithin(ctx context.Context, tx *sql.Tx, status string, oldIndex, newIndex int) error {
	return shiftWithin(ctx, tx, tableTasks, status, oldIndex, newIndex)
}

// Prospect partition wrappers.

func (r Repo) NextProspectPosition(ctx context.Context, tx *sql.Tx, stage string) (int, error) {
	return nextPosition(ctx, tx, tableProspects, stage)
}

func (r Repo) MakeProspectRoom(ctx context.Context, tx *sql.Tx, stage string, index int) error {
	return makeRoom(ctx, tx, tableProspects, stage, index)
}

func (r Repo) CloseProspectGap(ctx context.Context, tx *sql.Tx, stage string, index int) error {
	return closeGap(ctx, tx, tableProspects, stage, index)
}

func (r Repo) ShiftProspectsWithin(ctx context.Context, tx *sql.Tx, stage string, oldIndex, newIndex int) error {
	return shiftWithin(ctx, tx, tableProspects, stage, oldIndex, newIndex)
}
