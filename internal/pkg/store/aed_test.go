package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
)

func TestUpsertQueriesChunking(t *testing.T) {
	aeds := make([]domain.AED, upsertChunkSize*2+1)
	for i := range aeds {
		aeds[i] = domain.AED{ID: int64(i + 1), Latitude: 37.9, Longitude: 23.7}
	}

	queries := upsertQueries(aeds)
	if len(queries) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(queries))
	}

	sql, args, err := queries[2].ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if len(args) != len(aedColumns) {
		t.Fatalf("last chunk should carry one row, got %d args", len(args))
	}
	if args[0] != int64(upsertChunkSize*2+1) {
		t.Fatalf("unexpected id arg %v", args[0])
	}
	if !strings.HasPrefix(sql, "INSERT INTO aed_locations (id,latitude,longitude,") {
		t.Fatalf("unexpected sql prefix: %s", sql)
	}
	if !strings.Contains(sql, "on conflict (id)") || !strings.Contains(sql, "availability = excluded.availability") {
		t.Fatalf("unexpected sql: %s", sql)
	}

	_, args, err = queries[0].ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if len(args) != upsertChunkSize*len(aedColumns) {
		t.Fatalf("first chunk should be full, got %d args", len(args))
	}
}

func TestUpsertQueriesEmpty(t *testing.T) {
	if got := upsertQueries(nil); len(got) != 0 {
		t.Fatalf("expected no queries, got %d", len(got))
	}
}

func TestWrapErr(t *testing.T) {
	if err := wrapErr(pgx.ErrNoRows); !errors.Is(err, constants.ErrDBNotFound) {
		t.Fatalf("ErrNoRows should map to ErrDBNotFound, got %v", err)
	}
	other := errors.New("boom")
	if err := wrapErr(other); err != other {
		t.Fatalf("unexpected mapping for %v", err)
	}
}
