// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessionstore persists the opaque session credentials the MTProto
// bridge hands back after connect and sign-in, keyed by phone number. Each
// distinct phone number maps to its own record, so switching accounts never
// clobbers another account's credentials.
//
// BadgerDB is used for local embedded storage with low-latency access.
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package sessionstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces credential records inside the database.
const keyPrefix = "session/"

// ErrNotFound is returned when no credentials are stored for a phone number.
var ErrNotFound = errors.New("sessionstore: no credentials for phone number")

// Config holds configuration for the credential store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes at the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests: no disk I/O, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed credential store. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open creates and opens a Store with the given configuration. The caller
// must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// KeyFromPhone derives the storage key for a phone number: every non-digit
// character is stripped except a leading "+". "+1 (555) 010-2030" and
// "+15550102030" therefore share one credential record.
func KeyFromPhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return keyPrefix + b.String()
}

// Load returns the stored credential blob for a phone number, or ErrNotFound.
func (s *Store) Load(phone string) (string, error) {
	key := []byte(KeyFromPhone(phone))
	var blob string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return blob, nil
}

// Save writes the credential blob for a phone number, replacing any previous
// record for the same sanitized key.
func (s *Store) Save(phone, blob string) error {
	key := []byte(KeyFromPhone(phone))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(blob))
	})
	if err != nil {
		return fmt.Errorf("save credentials for %s: %w", phone, err)
	}
	return nil
}

// Delete removes the credential record for a phone number. Deleting a phone
// number with no record is a no-op.
func (s *Store) Delete(phone string) error {
	key := []byte(KeyFromPhone(phone))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete credentials for %s: %w", phone, err)
	}
	return nil
}
