package presets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"photo-studio/internal/studio"
)

// Namespace is the key prefix of every preset list.
const Namespace = "miximage_presets"

const (
	MsgSaved        = "บันทึกสไตล์สำเร็จ!"
	MsgSaveFailed   = "ไม่สามารถบันทึกสไตล์ได้ พื้นที่จัดเก็บอาจเต็ม"
	MsgDeleteFailed = "ไม่สามารถลบสไตล์ได้"
)

var (
	ErrPersist     = errors.New("presets: could not persist presets")
	ErrInvalidName = errors.New("presets: name must not be empty")
	ErrUnknown     = errors.New("presets: no preset with that name")
)

type Preset struct {
	Name   string           `json:"name"`
	Styles studio.Selection `json:"styles"`
}

// Book is one owner's preset list. It is read from the store once and
// rewritten in full on every change. When a write fails the in-memory list
// keeps the change and the error wraps ErrPersist.
type Book struct {
	kv     KV
	key    string
	logger zerolog.Logger

	mu      sync.Mutex
	loaded  bool
	presets []Preset
}

func NewBook(kv KV, owner string, logger zerolog.Logger) *Book {
	key := Namespace
	if owner = strings.TrimSpace(owner); owner != "" {
		key += ":" + owner
	}
	return &Book{kv: kv, key: key, logger: logger}
}

func (b *Book) loadLocked(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	data, err := b.kv.Get(ctx, b.key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("presets: load %s: %w", b.key, err)
	default:
		var list []Preset
		if err := json.Unmarshal(data, &list); err != nil {
			// A corrupt list is dropped rather than blocking the studio.
			b.logger.Warn().Err(err).Str("key", b.key).Msg("discarding unreadable preset list")
		} else {
			b.presets = list
		}
	}
	b.loaded = true
	return nil
}

func (b *Book) List(ctx context.Context) ([]Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadLocked(ctx); err != nil {
		return nil, err
	}
	return clonePresets(b.presets), nil
}

func (b *Book) Get(ctx context.Context, name string) (Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadLocked(ctx); err != nil {
		return Preset{}, err
	}
	if i := b.indexLocked(strings.TrimSpace(name)); i >= 0 {
		p := b.presets[i]
		p.Styles = p.Styles.Clone()
		return p, nil
	}
	return Preset{}, ErrUnknown
}

// Save stores styles under name, replacing a preset with the same name.
func (b *Book) Save(ctx context.Context, name string, styles studio.Selection) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, ErrInvalidName
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadLocked(ctx); err != nil {
		return Preset{}, err
	}

	p := Preset{Name: name, Styles: styles.Clone()}
	if i := b.indexLocked(name); i >= 0 {
		b.presets[i] = p
	} else {
		b.presets = append(b.presets, p)
	}
	return p, b.persistLocked(ctx)
}

func (b *Book) Delete(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadLocked(ctx); err != nil {
		return err
	}

	i := b.indexLocked(strings.TrimSpace(name))
	if i < 0 {
		return ErrUnknown
	}
	b.presets = slices.Delete(b.presets, i, i+1)
	return b.persistLocked(ctx)
}

func (b *Book) indexLocked(name string) int {
	return slices.IndexFunc(b.presets, func(p Preset) bool { return p.Name == name })
}

func (b *Book) persistLocked(ctx context.Context) error {
	list := b.presets
	if list == nil {
		list = []Preset{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := b.kv.Set(ctx, b.key, data); err != nil {
		b.logger.Error().Err(err).Str("key", b.key).Msg("preset write failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func clonePresets(in []Preset) []Preset {
	out := make([]Preset, len(in))
	for i, p := range in {
		out[i] = Preset{Name: p.Name, Styles: p.Styles.Clone()}
	}
	return out
}

// Library hands out one Book per owner over a shared store.
type Library struct {
	kv     KV
	logger zerolog.Logger

	mu    sync.Mutex
	books map[string]*Book
}

func NewLibrary(kv KV, logger zerolog.Logger) *Library {
	return &Library{kv: kv, logger: logger, books: make(map[string]*Book)}
}

func (l *Library) Book(owner string) *Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.books[owner]; ok {
		return b
	}
	b := NewBook(l.kv, owner, l.logger)
	l.books[owner] = b
	return b
}
