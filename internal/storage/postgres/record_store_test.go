package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

func TestWriteInsertsBatchInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "listing_records")
	require.NoError(t, err)
	store.StartRun("run-1")

	records := []crawler.PageRecord{
		{Page: 9, Title: "a", URL: "https://forum.example.com/1-t.html", Publisher: "alice", Link: "magnet:?xt=urn:btih:aa", LinkStatus: crawler.LinkResolved},
		{Page: 9, Title: "b", URL: "https://forum.example.com/b.html", Publisher: "Unknown", LinkStatus: crawler.LinkNone},
	}

	mock.ExpectBegin()
	for _, r := range records {
		mock.ExpectExec("INSERT INTO listing_records").
			WithArgs("run-1", r.Page, r.Title, r.URL, r.Publisher, r.Link, string(r.LinkStatus)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Write(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listing_records").
		WithArgs("", 1, "a", "u", "p", "", "none").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = store.Write(context.Background(), []crawler.PageRecord{{Page: 1, Title: "a", URL: "u", Publisher: "p", LinkStatus: crawler.LinkNone}})
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records_1670")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records_1670").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, "postgres://records_1670", store.Path())
}

func TestNewWithPoolValidates(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "records; DROP TABLE x")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
