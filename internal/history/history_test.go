package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecent_ReturnsNewestSliceOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Insert(ctx, Message{
			ChatID:    7,
			UserID:    1,
			Username:  "alice",
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	got := s.Recent(ctx, 7, 3)
	require.Len(t, got, 3)
	require.Equal(t, "message 2", got[0].Text)
	require.Equal(t, "message 4", got[2].Text)
	require.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestRecentSince_InclusiveBoundary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	s.Insert(ctx, Message{ChatID: 7, UserID: 1, Username: "alice", Text: "before", Timestamp: base.Add(-time.Minute)})
	s.Insert(ctx, Message{ChatID: 7, UserID: 1, Username: "alice", Text: "exact", Timestamp: base})
	s.Insert(ctx, Message{ChatID: 7, UserID: 1, Username: "alice", Text: "after", Timestamp: base.Add(time.Minute)})

	got := s.RecentSince(ctx, 7, base)
	require.Len(t, got, 2)
	require.Equal(t, "exact", got[0].Text)
	require.Equal(t, "after", got[1].Text)
}

func TestChatsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s.Insert(ctx, Message{ChatID: 1, UserID: 1, Username: "alice", Text: "chat one", Timestamp: now})
	s.Insert(ctx, Message{ChatID: 2, UserID: 2, Username: "bob", Text: "chat two", Timestamp: now})

	got := s.Recent(ctx, 1, 10)
	require.Len(t, got, 1)
	require.Equal(t, "chat one", got[0].Text)
}

func TestDeleteAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s.Insert(ctx, Message{ChatID: 7, UserID: 1, Username: "alice", Text: "hi", Timestamp: now})
	s.Insert(ctx, Message{ChatID: 8, UserID: 1, Username: "alice", Text: "other chat", Timestamp: now})

	require.NoError(t, s.DeleteAll(ctx, 7))
	require.Empty(t, s.Recent(ctx, 7, 10))
	require.Len(t, s.Recent(ctx, 8, 10), 1)
}

func TestFromAssistant(t *testing.T) {
	require.True(t, Message{UserID: AssistantUserID}.FromAssistant())
	require.False(t, Message{UserID: 42}.FromAssistant())
}
