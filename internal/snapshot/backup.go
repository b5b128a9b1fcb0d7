package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cargo-market/internal/economy"
)

const backupPrefix = "game_state-"

// Rotator writes timestamped compressed copies of the state into a directory
// and keeps only the newest few.
type Rotator struct {
	dir  string
	keep int
}

func NewRotator(dir string, keep int) *Rotator {
	if keep < 1 {
		keep = 1
	}
	return &Rotator{dir: dir, keep: keep}
}

// Backup writes state as game_state-<UTC timestamp>.json.zst and prunes older
// backups. It returns the path written.
func (r *Rotator) Backup(ctx context.Context, state *economy.GameState, now time.Time) (string, error) {
	doc, err := Encode(state)
	if err != nil {
		return "", err
	}
	name := backupPrefix + now.UTC().Format("20060102T150405Z") + ".json.zst"
	target := filepath.Join(r.dir, name)
	if err := NewFileBackend(target).Write(ctx, doc); err != nil {
		return "", fmt.Errorf("write backup %s: %w", name, err)
	}
	if err := r.prune(); err != nil {
		return target, err
	}
	return target, nil
}

// List returns existing backups, oldest first.
func (r *Rotator) List() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, backupPrefix+"*.json.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (r *Rotator) prune() error {
	files, err := r.List()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	for len(files) > r.keep {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("remove backup %s: %w", files[0], err)
		}
		files = files[1:]
	}
	return nil
}
