package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cliquey/pkg/domain-errors"
)

func TestMemoryRunner_RollsBackJournalOnError(t *testing.T) {
	r := NewMemoryRunner()
	state := []string{"a"}

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		state = append(state, "b")
		RecordUndo(ctx, func() { state = state[:len(state)-1] })
		state = append(state, "c")
		RecordUndo(ctx, func() { state = state[:len(state)-1] })
		return errors.New("fail after two writes")
	})

	require.Error(t, err)
	assert.Equal(t, []string{"a"}, state)
}

func TestMemoryRunner_KeepsChangesOnSuccess(t *testing.T) {
	r := NewMemoryRunner()
	undone := false

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		RecordUndo(ctx, func() { undone = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, undone)
}

func TestMemoryRunner_NestedJoinsOuter(t *testing.T) {
	r := NewMemoryRunner()
	count := 0

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		count++
		RecordUndo(ctx, func() { count-- })
		return r.RunInTx(ctx, func(inner context.Context) error {
			count++
			RecordUndo(inner, func() { count-- })
			return errors.New("inner failure")
		})
	})

	require.Error(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryRunner_SerializesSameKey(t *testing.T) {
	r := NewMemoryRunner()
	ctx := WithLockKey(context.Background(), "profile-1")
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(ctx, func(context.Context) error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	r := NewMemoryRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunInTx(ctx, func(context.Context) error { return nil })
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestPostgresRunner(t *testing.T) {
	t.Run("commits on success and exposes tx", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE profiles").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewPostgresRunner(db).RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := From(ctx)
			require.True(t, ok)
			_, err := ExecutorFrom(ctx, db).ExecContext(ctx, "UPDATE profiles SET visit_count = visit_count + 1")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewPostgresRunner(db, WithTimeout(time.Second)).RunInTx(context.Background(), func(context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
