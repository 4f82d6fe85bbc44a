// Package cache shares generated scene assets between export targets of a
// run. Entries are addressed by a hash of everything that shaped them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Key hashes the parts with a separator that cannot occur in their text.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store keeps one file per key under dir. A nil *Store is valid and
// disables caching.
type Store struct {
	dir   string
	group singleflight.Group
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Fetch places the asset for key at dst. On a miss produce writes the asset
// to the path it is given; concurrent callers with the same key wait for a
// single produce call. The shared call runs with the context of the caller
// that started it. If that caller is cancelled while another waiter's ctx is
// still live, the waiter starts a fresh call instead of taking the error.
func (s *Store) Fetch(ctx context.Context, key, ext, dst string, produce func(ctx context.Context, path string) error) error {
	if s == nil {
		return produce(ctx, dst)
	}
	cached := filepath.Join(s.dir, key+ext)
	for attempt := 1; ; attempt++ {
		ch := s.group.DoChan(key+ext, func() (any, error) {
			if info, err := os.Stat(cached); err == nil && info.Size() > 0 {
				return nil, nil
			}
			tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString()+ext)
			if err := produce(ctx, tmp); err != nil {
				os.Remove(tmp)
				return nil, err
			}
			if err := os.Rename(tmp, cached); err != nil {
				os.Remove(tmp)
				return nil, fmt.Errorf("store cache entry: %w", err)
			}
			return nil, nil
		})

		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			err = res.Err
		}
		if err != nil && isCancellation(err) && ctx.Err() == nil && attempt < maxAttempts {
			continue
		}
		if err != nil {
			return err
		}
		return copyFile(cached, dst)
	}
}

// maxAttempts bounds retries after another caller's cancellation.
const maxAttempts = 3

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Close removes the store's directory.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy cache entry: %w", err)
	}
	return out.Close()
}
