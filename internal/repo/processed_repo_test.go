package repo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/robbitt07/taskqueue/internal/worker"
)

// fakeRow — результат QueryRow.
type fakeRow struct {
	done bool
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.done
	return nil
}

type processedRow struct {
	at   time.Time
	done bool
}

// fakeDB эмулирует таблицу processed_messages.
type fakeDB struct {
	rows    map[string]processedRow
	queries []string
	err     error

	// vanish — строка исчезает между INSERT и SELECT.
	vanish bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]processedRow)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.queries = append(db.queries, sql)
	if db.err != nil {
		return pgconn.CommandTag{}, db.err
	}

	switch {
	case strings.Contains(sql, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.Contains(sql, "INSERT"):
		id := args[0].(string)
		if _, ok := db.rows[id]; ok {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		db.rows[id] = processedRow{at: time.Now()}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "UPDATE"):
		id := args[0].(string)
		if _, ok := db.rows[id]; !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		db.rows[id] = processedRow{at: time.Now(), done: true}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.Contains(sql, "claimed_at <"):
		cutoff := args[0].(time.Time)
		n := 0
		for id, row := range db.rows {
			if row.at.Before(cutoff) {
				delete(db.rows, id)
				n++
			}
		}
		return pgconn.NewCommandTag("DELETE " + strconv.Itoa(n)), nil
	case strings.Contains(sql, "DELETE"):
		id := args[0].(string)
		if _, ok := db.rows[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(db.rows, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected query")
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.queries = append(db.queries, sql)
	if db.err != nil {
		return fakeRow{err: db.err}
	}

	id := args[0].(string)
	if db.vanish {
		db.vanish = false
		delete(db.rows, id)
	}
	row, ok := db.rows[id]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{done: row.done}
}

func TestProcessedRepo_Claim(t *testing.T) {
	db := newFakeDB()
	r := NewProcessedRepo(db)
	ctx := context.Background()

	steps := []struct {
		action func() error
		want   worker.ClaimState
	}{
		{nil, worker.ClaimAcquired},
		{nil, worker.ClaimPending},
		{func() error { return r.Complete(ctx, "m1") }, worker.ClaimDone},
		{func() error { return r.Release(ctx, "m1") }, worker.ClaimAcquired},
	}

	for i, step := range steps {
		if step.action != nil {
			if err := step.action(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
		state, err := r.Claim(ctx, "m1", "send_email")
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if state != step.want {
			t.Errorf("step %d: expected %s, got %s", i, step.want, state)
		}
	}
}

func TestProcessedRepo_ClaimRowVanished(t *testing.T) {
	db := newFakeDB()
	db.rows["m1"] = processedRow{at: time.Now()}
	db.vanish = true
	r := NewProcessedRepo(db)

	state, err := r.Claim(context.Background(), "m1", "send_email")
	if err != nil {
		t.Fatal(err)
	}
	if state != worker.ClaimAcquired {
		t.Errorf("vanished row should be claimed again, got %s", state)
	}
}

func TestProcessedRepo_ClaimEmptyID(t *testing.T) {
	r := NewProcessedRepo(newFakeDB())
	if _, err := r.Claim(context.Background(), "", "x"); !errors.Is(err, ErrEmptyMessageID) {
		t.Errorf("expected ErrEmptyMessageID, got %v", err)
	}
}

func TestProcessedRepo_DBError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection refused")
	r := NewProcessedRepo(db)

	if _, err := r.Claim(context.Background(), "m1", "x"); !errors.Is(err, db.err) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
	if err := r.EnsureSchema(context.Background()); !errors.Is(err, db.err) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
}

func TestProcessedRepo_DeleteOlderThan(t *testing.T) {
	db := newFakeDB()
	db.rows["old"] = processedRow{at: time.Now().Add(-48 * time.Hour)}
	db.rows["fresh"] = processedRow{at: time.Now()}
	r := NewProcessedRepo(db)

	n, err := r.DeleteOlderThan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted row, got %d", n)
	}
	if _, ok := db.rows["fresh"]; !ok {
		t.Error("fresh row should be kept")
	}
}

func TestProcessedRepo_DeleteOlderThanWithoutExpiry(t *testing.T) {
	db := newFakeDB()
	db.rows["m1"] = processedRow{at: time.Now().Add(-time.Hour)}
	r := NewProcessedRepo(db)

	for _, age := range []time.Duration{0, -time.Minute} {
		n, err := r.DeleteOlderThan(context.Background(), age)
		if err != nil || n != 0 {
			t.Errorf("age %v: expected no deletion, got %d, %v", age, n, err)
		}
	}
	if len(db.queries) != 0 {
		t.Errorf("no query expected without expiry, got %v", db.queries)
	}
	if _, ok := db.rows["m1"]; !ok {
		t.Error("row must be kept when ttl disables expiry")
	}
}

func TestNewPool_EmptyDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); !errors.Is(err, ErrEmptyDSN) {
		t.Errorf("expected ErrEmptyDSN, got %v", err)
	}
}
