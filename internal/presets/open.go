package presets

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type Config struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseDSN   string
}

// Open builds the store named by cfg.Backend. The returned closer is never
// nil.
func Open(ctx context.Context, cfg Config) (KV, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		fs, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return fs, nopCloser{}, nil
	case "redis":
		rs, err := NewRedisStore(ctx, RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, nopCloser{}, err
		}
		return rs, rs, nil
	case "sqlite":
		dsn := cfg.DatabaseDSN
		if dsn == "" {
			if _, err := NewFileStore(cfg.Dir); err != nil {
				return nil, nopCloser{}, err
			}
			dsn = filepath.Join(cfg.Dir, "presets.db")
		}
		gs, err := OpenSQLite(dsn)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return gs, gs, nil
	case "mysql":
		gs, err := OpenMySQL(cfg.DatabaseDSN)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return gs, gs, nil
	}
	return nil, nopCloser{}, fmt.Errorf("presets: unknown backend %q", cfg.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
