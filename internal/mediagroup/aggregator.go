package mediagroup

import (
	"slices"
	"sync"
	"time"
)

// Item is one photo message that belongs to a Telegram album.
type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MediaGroupID string
	MessageID    int
	Caption      string
	FileID       string
}

// Group is one flushed album. FileIDs follow message order, so the first
// photo the user picked comes first.
type Group struct {
	ChatID   int64
	UserID   int64
	Username string
	Caption  string
	FileIDs  []string
}

// Primary is the subject photo; Outfit is the optional second photo.
func (g Group) Primary() string {
	if len(g.FileIDs) == 0 {
		return ""
	}
	return g.FileIDs[0]
}

func (g Group) Outfit() string {
	if len(g.FileIDs) < 2 {
		return ""
	}
	return g.FileIDs[1]
}

type Options struct {
	// Debounce is how long an album stays open after its latest photo.
	Debounce time.Duration
	OnFlush  func(Group)
}

// Aggregator collects album photos that Telegram delivers as separate
// updates and hands them over as one Group once the album goes quiet.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	albums   map[albumKey]*album
	stopped  bool
}

type albumKey struct {
	chatID int64
	id     string
}

type album struct {
	items []Item
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}
	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		albums:   make(map[albumKey]*album),
	}
}

// Add records a photo and restarts the album's debounce timer. Items without
// an album id or a file are ignored.
func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}
	key := albumKey{chatID: item.ChatID, id: item.MediaGroupID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	al := a.albums[key]
	if al == nil {
		al = &album{}
		a.albums[key] = al
	}
	al.items = append(al.items, item)

	if al.timer != nil {
		al.timer.Stop()
	}
	al.timer = time.AfterFunc(a.debounce, func() { a.flush(key) })
}

// Pending reports how many albums are still waiting for their debounce.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.albums)
}

// Stop drops every open album without flushing it.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key, al := range a.albums {
		if al.timer != nil {
			al.timer.Stop()
		}
		delete(a.albums, key)
	}
}

func (a *Aggregator) flush(key albumKey) {
	a.mu.Lock()
	al, ok := a.albums[key]
	if ok {
		delete(a.albums, key)
	}
	onFlush := a.onFlush
	a.mu.Unlock()

	if !ok || onFlush == nil {
		return
	}
	onFlush(al.group())
}

// group orders the album by message id; updates can arrive out of order.
func (al *album) group() Group {
	items := slices.Clone(al.items)
	slices.SortStableFunc(items, func(x, y Item) int { return x.MessageID - y.MessageID })

	first := items[0]
	g := Group{
		ChatID:   first.ChatID,
		UserID:   first.UserID,
		Username: first.Username,
		FileIDs:  make([]string, 0, len(items)),
	}
	for _, it := range items {
		g.FileIDs = append(g.FileIDs, it.FileID)
		if g.Caption == "" && it.Caption != "" {
			g.Caption = it.Caption
		}
	}
	return g
}
