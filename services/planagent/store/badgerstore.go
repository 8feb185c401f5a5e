// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/testplan-agent/pkg/validation"
	"github.com/AleutianAI/testplan-agent/services/planagent/datatypes"
	"github.com/AleutianAI/testplan-agent/services/planagent/overlay"
)

// overlayKeyPrefix namespaces overlay documents inside the shared database.
const overlayKeyPrefix = "overlay/"

// BadgerOverlayStore persists named overlay documents in an embedded
// BadgerDB, one value per overlay name. It is the durable alternative to
// FileOverlayStore for deployments where the data directory is not meant to
// be hand-edited.
type BadgerOverlayStore struct {
	db *badger.DB
}

// badgerSlog adapts the default slog logger to BadgerDB's Logger interface.
type badgerSlog struct{}

func (badgerSlog) Errorf(format string, args ...interface{}) {
	slog.Error(fmt.Sprintf(format, args...))
}
func (badgerSlog) Warningf(format string, args ...interface{}) {
	slog.Warn(fmt.Sprintf(format, args...))
}
func (badgerSlog) Infof(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...))
}
func (badgerSlog) Debugf(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerOverlayStore opens (creating if needed) a BadgerDB at path.
// Callers own Close. An empty path opens an in-memory database, which tests
// use to avoid disk I/O.
func OpenBadgerOverlayStore(path string) (*BadgerOverlayStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("%w: create badger directory: %v", overlay.ErrStoreUnavailable, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerSlog{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", overlay.ErrStoreUnavailable, path, err)
	}
	return &BadgerOverlayStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerOverlayStore) Close() error {
	return s.db.Close()
}

func overlayKey(name string) ([]byte, error) {
	if err := validation.ValidateOverlayName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", overlay.ErrInvalidOverlayName, err)
	}
	return []byte(overlayKeyPrefix + name), nil
}

// Get returns the records of a named overlay. A name that was never written
// yields an empty document, not an error.
func (s *BadgerOverlayStore) Get(ctx context.Context, name string) ([]datatypes.OverlayRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := overlayKey(name)
	if err != nil {
		return nil, err
	}

	var records []datatypes.OverlayRecord
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			records = []datatypes.OverlayRecord{}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &records)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	return records, nil
}

// Put replaces the full document of a named overlay.
func (s *BadgerOverlayStore) Put(ctx context.Context, name string, records []datatypes.OverlayRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := overlayKey(name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: write overlay %s: %v", overlay.ErrStoreUnavailable, name, err)
	}
	return nil
}

// List returns the names of every stored overlay, sorted.
func (s *BadgerOverlayStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(overlayKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, overlayKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list overlays: %v", overlay.ErrStoreUnavailable, err)
	}
	sort.Strings(names)
	return names, nil
}
