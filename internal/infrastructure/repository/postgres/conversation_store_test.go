package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func TestNextUserTurnCreatesSessionOnFirstCall(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`UPDATE reading_sessions`).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO reading_sessions`).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE reading_sessions`).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"current_user_turn"}).AddRow(1))

	store := NewConversationStore(db)
	turn, err := store.NextUserTurn(context.Background(), "s1")
	if err != nil {
		t.Fatalf("NextUserTurn: %v", err)
	}
	if turn != 1 {
		t.Fatalf("expected first turn 1, got %d", turn)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRecentMessagesChronological(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "role", "content", "user_turn", "created_at"}).
		AddRow("m2", "s1", "assistant", "second", 1, now).
		AddRow("m1", "s1", "user", "first", 1, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT id, session_id, role, content, user_turn, created_at`).
		WithArgs("s1", 12).
		WillReturnRows(rows)

	store := NewConversationStore(db)
	out, err := store.ListRecentMessages(context.Background(), "s1", 12)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if out[0].Content != "first" || out[1].Content != "second" {
		t.Fatalf("expected chronological order, got %v", []string{out[0].Content, out[1].Content})
	}
}

func TestAppendMessageStampsCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO reading_messages`).
		WithArgs("m1", "s1", "user", "hello", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewConversationStore(db)
	err = store.AppendMessage(context.Background(), domain.ConversationMessage{
		ID:        "m1",
		SessionID: "s1",
		Role:      "user",
		Content:   "hello",
		UserTurn:  1,
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
