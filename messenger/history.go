package messenger

import "sync"

// historyRing keeps the most recent posts observed per chat. The Bot API offers no way
// to read channel history, so the transport remembers what it has been delivered.
type historyRing struct {
	mu    sync.Mutex
	size  int
	posts map[int64][]Post
}

func newHistoryRing(size int) *historyRing {
	if size <= 0 {
		size = 100
	}
	return &historyRing{size: size, posts: make(map[int64][]Post)}
}

// add records p, replacing an earlier version of the same message (edits).
func (h *historyRing) add(p Post) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.posts[p.ChatID]
	for i := range list {
		if list[i].MessageID == p.MessageID {
			list[i] = p
			return
		}
	}
	list = append(list, p)
	if len(list) > h.size {
		list = list[len(list)-h.size:]
	}
	h.posts[p.ChatID] = list
}

// recent returns up to limit posts for chatID, newest first.
func (h *historyRing) recent(chatID int64, limit int) []Post {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.posts[chatID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Post, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out
}
