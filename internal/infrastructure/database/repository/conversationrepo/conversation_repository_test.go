package conversationrepo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/database"
	"jan-server/services/session-api/internal/infrastructure/database/transaction"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const (
	selectForUpdate = `SELECT .* FROM .*"conversations" WHERE id = .* FOR UPDATE`
	insertRow       = `INSERT INTO .*"conversations"`
	updateRow       = `UPDATE .*"conversations" SET`
	insertTurns     = `INSERT INTO .*"conversation_turns"`
	countRows       = `SELECT count\(\*\) FROM .*"conversations"`
)

var created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newMockRepository(t *testing.T) (*ConversationGormRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), database.GormConfig(gormlogger.Silent))
	require.NoError(t, err)
	return NewConversationGormRepository(transaction.NewDatabase(db), zerolog.Nop()), mock
}

func conversationWithTurns(t *testing.T, owner string, contents ...string) *conversation.Conversation {
	t.Helper()
	conv := conversation.New("conv_abc", owner, conversation.DefaultModel, created)
	for i, content := range contents {
		role, cost := conversation.RoleUser, 0
		if i%2 == 1 {
			role, cost = conversation.RoleAssistant, 10
		}
		_, err := conv.Append(role, content, cost, created.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	return conv
}

func lockedRow(id, owner string, turnCount int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "turn_count"}).AddRow(id, owner, turnCount)
}

func TestPutInsertsNewConversation(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "alice", "hello")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "turn_count"}))
	mock.ExpectExec(insertRow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTurns).
		WithArgs("conv_abc", 0, "user", "hello", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Put(context.Background(), conv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutInsertsOnlyNewTurns(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "alice", "first question", "first answer", "second question")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(lockedRow("conv_abc", "alice", 1))
	mock.ExpectExec(updateRow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTurns).
		WithArgs(
			"conv_abc", 1, "assistant", "first answer", 10, sqlmock.AnyArg(),
			"conv_abc", 2, "user", "second question", 0, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Put(context.Background(), conv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWithNoNewTurnsOnlyUpdates(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "alice", "hello", "hi")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(lockedRow("conv_abc", "alice", 2))
	mock.ExpectExec(updateRow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Put(context.Background(), conv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutForeignOwnerIsNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "mallory", "overwrite")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(lockedRow("conv_abc", "alice", 4))
	mock.ExpectRollback()

	err := repo.Put(context.Background(), conv)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRefusesToDropStoredTurns(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "alice", "hello", "hi")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(lockedRow("conv_abc", "alice", 5))
	mock.ExpectRollback()

	err := repo.Put(context.Background(), conv)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))
	assert.ErrorIs(t, err, errTurnsRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRollsBackWhenTurnInsertFails(t *testing.T) {
	repo, mock := newMockRepository(t)
	conv := conversationWithTurns(t, "alice", "hello")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(lockedRow("conv_abc", "alice", 0))
	mock.ExpectExec(updateRow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTurns).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Put(context.Background(), conv)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPastLastPageSkipsFetch(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(countRows).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	items, total, err := repo.Query(context.Background(), conversation.Filter{OwnerID: "alice"}, math.MaxInt, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
