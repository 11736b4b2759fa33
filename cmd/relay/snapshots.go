package main

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/persistence/indexdb"
	"tilecraft.ai/internal/persistence/snapshot"
	"tilecraft.ai/internal/relay"
)

// restoreStore loads path, or the newest snapshot in dir when path is empty and latest is set.
// A missing snapshot is not an error; the relay starts with an empty Diff Store.
func restoreStore(store *relay.DiffStore, path, dir string, latest bool, log logrus.FieldLogger) error {
	if path == "" && latest {
		p, err := snapshot.Latest(dir)
		switch {
		case errors.Is(err, snapshot.ErrNoSnapshot):
			return nil
		case err != nil:
			return err
		}
		path = p
	}
	if path == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	store.Import(snap)
	log.WithFields(logrus.Fields{
		"snapshot":        filepath.Base(path),
		"from_run":        snap.Header.Run,
		"entries":         snap.Len(),
		"next_storage_id": snap.NextStorageID,
	}).Info("resumed from snapshot")
	return nil
}

type snapshotter struct {
	dir   string
	runID string
	store *relay.DiffStore
	idx   *indexdb.SQLiteIndex
	log   logrus.FieldLogger
}

// run writes a snapshot every interval until ctx is done. interval <= 0 disables periodic snapshots.
func (s *snapshotter) run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := s.take(now); err != nil {
				s.log.WithError(err).Error("snapshot write")
			}
		}
	}
}

// take writes the current Diff Store to <dir>/<timestamp>.snap.zst and records it in the index.
func (s *snapshotter) take(now time.Time) (string, error) {
	snap := s.store.Export(s.runID, now)
	path := filepath.Join(s.dir, snapshot.FileName(now))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap.Len(), snap.NextStorageID, now)
	}
	s.log.WithFields(logrus.Fields{"path": path, "entries": snap.Len()}).Debug("snapshot written")
	return path, nil
}
