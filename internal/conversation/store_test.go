package conversation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/db"
	"chatbot-api/internal/models"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "conversation-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, email string) uint64 {
	t.Helper()
	user := models.User{Email: email, Password: "hashed", IsVerified: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return user.ID
}

func TestDeriveTitle(t *testing.T) {
	short := "Hello there"
	if got := DeriveTitle(short); got != short {
		t.Fatalf("expected short title unchanged, got %q", got)
	}

	long := strings.Repeat("a", 45)
	got := DeriveTitle(long)
	if got != strings.Repeat("a", 30)+"…" {
		t.Fatalf("expected 30 runes plus ellipsis, got %q", got)
	}

	// Truncation must respect rune boundaries.
	multibyte := strings.Repeat("é", 40)
	got = DeriveTitle(multibyte)
	if got != strings.Repeat("é", 30)+"…" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	userID := seedUser(t, conn, "history@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	chat, err := store.CreateChat(ctx, &userID, "first question", "openai/gpt-3.5-turbo")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	turns := []struct{ role, content string }{
		{models.MessageRoleUser, "first question"},
		{models.MessageRoleAssistant, "first answer"},
		{models.MessageRoleUser, "second question"},
		{models.MessageRoleAssistant, "second answer"},
	}
	for _, turn := range turns {
		if _, errAppend := store.AppendMessage(ctx, chat.ID, turn.role, turn.content, ""); errAppend != nil {
			t.Fatalf("append %q: %v", turn.content, errAppend)
		}
	}

	history, errHistory := store.History(ctx, chat.ID, 10)
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(history) != len(turns) {
		t.Fatalf("expected %d messages, got %d", len(turns), len(history))
	}
	for i, turn := range turns {
		if history[i].Role != turn.role || history[i].Content != turn.content {
			t.Fatalf("message %d: expected %s %q, got %s %q", i, turn.role, turn.content, history[i].Role, history[i].Content)
		}
	}

	// A tighter limit keeps only the latest messages, still in order.
	tail, errTail := store.History(ctx, chat.ID, 2)
	if errTail != nil {
		t.Fatalf("history tail: %v", errTail)
	}
	if len(tail) != 2 || tail[0].Content != "second question" || tail[1].Content != "second answer" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestGetChat_Ownership(t *testing.T) {
	conn := openTestDB(t)
	ownerID := seedUser(t, conn, "owner@example.com")
	otherID := seedUser(t, conn, "other@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	chat, err := store.CreateChat(ctx, &ownerID, "private thread", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	if _, errGet := store.GetChat(ctx, chat.ID, &ownerID); errGet != nil {
		t.Fatalf("owner should read own chat: %v", errGet)
	}
	if _, errGet := store.GetChat(ctx, chat.ID, &otherID); apperr.KindOf(errGet) != apperr.KindNotFound {
		t.Fatalf("expected not found for other user, got %v", errGet)
	}
	if _, errGet := store.GetChat(ctx, chat.ID, nil); apperr.KindOf(errGet) != apperr.KindNotFound {
		t.Fatalf("expected not found for anonymous requester, got %v", errGet)
	}
}

func TestListSidebar_AnonymousIsEmpty(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if _, err := store.CreateChat(ctx, nil, "anonymous thread", ""); err != nil {
		t.Fatalf("create anonymous chat: %v", err)
	}

	entries, err := store.ListSidebar(ctx, nil)
	if err != nil {
		t.Fatalf("list sidebar: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty sidebar for anonymous user, got %d entries", len(entries))
	}
}

func TestListSidebar_OrdersByActivity(t *testing.T) {
	conn := openTestDB(t)
	userID := seedUser(t, conn, "sidebar@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	first, err := store.CreateChat(ctx, &userID, "first thread", "")
	if err != nil {
		t.Fatalf("create first chat: %v", err)
	}
	second, err := store.CreateChat(ctx, &userID, "second thread", "")
	if err != nil {
		t.Fatalf("create second chat: %v", err)
	}
	if _, errAppend := store.AppendMessage(ctx, first.ID, models.MessageRoleUser, "bump", ""); errAppend != nil {
		t.Fatalf("append: %v", errAppend)
	}

	entries, errList := store.ListSidebar(ctx, &userID)
	if errList != nil {
		t.Fatalf("list sidebar: %v", errList)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != first.ID {
		t.Fatalf("expected recently active chat first, got %d", entries[0].ID)
	}
	if entries[0].MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", entries[0].MessageCount)
	}
	_ = second
}

func TestMaybeRetitle_FreezesAfterTwoMessages(t *testing.T) {
	conn := openTestDB(t)
	userID := seedUser(t, conn, "retitle@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	chat, err := store.CreateChat(ctx, &userID, "original", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if _, errAppend := store.AppendMessage(ctx, chat.ID, models.MessageRoleUser, "original", ""); errAppend != nil {
		t.Fatalf("append: %v", errAppend)
	}
	if _, errAppend := store.AppendMessage(ctx, chat.ID, models.MessageRoleAssistant, "reply", ""); errAppend != nil {
		t.Fatalf("append: %v", errAppend)
	}

	if errRetitle := store.MaybeRetitle(ctx, chat.ID, "updated title"); errRetitle != nil {
		t.Fatalf("retitle: %v", errRetitle)
	}
	loaded, errGet := store.GetChat(ctx, chat.ID, &userID)
	if errGet != nil {
		t.Fatalf("get chat: %v", errGet)
	}
	if loaded.Title != "updated title" {
		t.Fatalf("expected retitle at 2 messages, got %q", loaded.Title)
	}

	if _, errAppend := store.AppendMessage(ctx, chat.ID, models.MessageRoleUser, "third", ""); errAppend != nil {
		t.Fatalf("append: %v", errAppend)
	}
	if errRetitle := store.MaybeRetitle(ctx, chat.ID, "too late"); errRetitle != nil {
		t.Fatalf("retitle: %v", errRetitle)
	}
	loaded, errGet = store.GetChat(ctx, chat.ID, &userID)
	if errGet != nil {
		t.Fatalf("get chat: %v", errGet)
	}
	if loaded.Title != "updated title" {
		t.Fatalf("expected title frozen after third message, got %q", loaded.Title)
	}
}

func TestDeleteChatAndDeleteAll(t *testing.T) {
	conn := openTestDB(t)
	userID := seedUser(t, conn, "delete@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	first, err := store.CreateChat(ctx, &userID, "thread one", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if _, errAppend := store.AppendMessage(ctx, first.ID, models.MessageRoleUser, "hello", ""); errAppend != nil {
		t.Fatalf("append: %v", errAppend)
	}
	if _, err = store.CreateChat(ctx, &userID, "thread two", ""); err != nil {
		t.Fatalf("create chat: %v", err)
	}

	if errDelete := store.DeleteChat(ctx, first.ID, userID); errDelete != nil {
		t.Fatalf("delete chat: %v", errDelete)
	}
	if errDelete := store.DeleteChat(ctx, first.ID, userID); apperr.KindOf(errDelete) != apperr.KindNotFound {
		t.Fatalf("expected not found for deleted chat, got %v", errDelete)
	}

	var orphans int64
	if errCount := conn.Model(&models.Message{}).Where("chat_id = ?", first.ID).Count(&orphans).Error; errCount != nil {
		t.Fatalf("count messages: %v", errCount)
	}
	if orphans != 0 {
		t.Fatalf("expected messages removed with chat, found %d", orphans)
	}

	deleted, errAll := store.DeleteAll(ctx, userID)
	if errAll != nil {
		t.Fatalf("delete all: %v", errAll)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 remaining chat deleted, got %d", deleted)
	}
}

func TestUsage(t *testing.T) {
	conn := openTestDB(t)
	userID := seedUser(t, conn, "usage@example.com")
	store := NewStore(conn)
	ctx := context.Background()

	chat, err := store.CreateChat(ctx, &userID, "usage thread", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	for _, content := range []string{"one", "two", "three"} {
		if _, errAppend := store.AppendMessage(ctx, chat.ID, models.MessageRoleUser, content, ""); errAppend != nil {
			t.Fatalf("append: %v", errAppend)
		}
	}

	summary, errUsage := store.Usage(ctx, userID)
	if errUsage != nil {
		t.Fatalf("usage: %v", errUsage)
	}
	if summary.Chats != 1 || summary.Messages != 3 {
		t.Fatalf("expected 1 chat and 3 messages, got %+v", summary)
	}
}
