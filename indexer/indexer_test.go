package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/messenger"
	"github.com/onnwee/reelbot/testutil"
)

const source int64 = -1001

type fakeHistory struct {
	mu    sync.Mutex
	posts []messenger.Post
	err   error
	calls int
	limit int
}

func (h *fakeHistory) History(_ context.Context, chatID int64, limit int) ([]messenger.Post, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.limit = limit
	if h.err != nil {
		return nil, h.err
	}
	var out []messenger.Post
	for _, p := range h.posts {
		if p.ChatID == chatID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (h *fakeHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type memMovies struct {
	mu     sync.Mutex
	titles map[int]string
}

func newMemMovies() *memMovies { return &memMovies{titles: make(map[int]string)} }

func (m *memMovies) UpsertMovie(_ context.Context, title string, ref int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.titles[ref]; ok {
		return false, nil
	}
	m.titles[ref] = title
	return true, nil
}

func (m *memMovies) CountMovies(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles), nil
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		title string
		ok    bool
	}{
		{"marker prefix", "🎬 Inception\n2010 · Nolan", "Inception", true},
		{"marker suffix", "The Matrix 🎬", "The Matrix", true},
		{"marker on later line", "Heat\n🎬 1995", "Heat", true},
		{"no marker", "Inception\n2010", "", false},
		{"blank title", "🎬\nsomething", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, ok := ExtractTitle(tt.text, "🎬")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestRefresh(t *testing.T) {
	h := &fakeHistory{posts: []messenger.Post{
		{ChatID: source, MessageID: 3, Text: "🎬 Interstellar"},
		{ChatID: source, MessageID: 2, Text: "just chatting"},
		{ChatID: source, MessageID: 1, Text: "🎬 Inception\n2010"},
		{ChatID: -5, MessageID: 9, Text: "🎬 Elsewhere"},
	}}
	movies := newMemMovies()
	ix := New(h, movies, Options{SourceChatID: source, Window: 100})

	res, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Matched: 2, Inserted: 2}, res)
	assert.Equal(t, 100, h.limit)
	assert.Equal(t, map[int]string{1: "Inception", 3: "Interstellar"}, movies.titles)

	res, err = ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted, "re-indexing is idempotent")
	assert.Len(t, movies.titles, 2)
}

func TestRefreshHistoryError(t *testing.T) {
	ix := New(&fakeHistory{err: errors.New("boom")}, newMemMovies(), Options{SourceChatID: source})
	_, err := ix.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read source history")
}

func TestIndexPost(t *testing.T) {
	movies := newMemMovies()
	ix := New(&fakeHistory{}, movies, Options{SourceChatID: source})
	ctx := context.Background()

	inserted, err := ix.IndexPost(ctx, messenger.Post{ChatID: source, MessageID: 7, Text: "🎬 Heat"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = ix.IndexPost(ctx, messenger.Post{ChatID: source, MessageID: 7, Text: "🎬 Heat (edited)"})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = ix.IndexPost(ctx, messenger.Post{ChatID: -5, MessageID: 8, Text: "🎬 Other chat"})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = ix.IndexPost(ctx, messenger.Post{ChatID: source, MessageID: 9, Text: "untagged"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, map[int]string{7: "Heat"}, movies.titles)
}

func TestStartRefreshJob(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := &fakeHistory{posts: []messenger.Post{{ChatID: source, MessageID: 1, Text: "🎬 Alien"}}}
	ix := New(h, newMemMovies(), Options{SourceChatID: source, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ix.StartRefreshJob(ctx, time.Hour)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 0, h.callCount())

	clock.Advance(time.Hour)
	assert.Eventually(t, func() bool { return h.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRefreshWithStore(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := catalog.NewStore(database)
	h := &fakeHistory{posts: []messenger.Post{
		{ChatID: source, MessageID: 11, Text: "🎬 Inception"},
		{ChatID: source, MessageID: 12, Text: "🎬 Inception"},
	}}
	ix := New(h, store, Options{SourceChatID: source})

	res, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted, "same title under different posts are distinct movies")

	res, err = ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	n, err := store.CountMovies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
