// Package badger stores buried block headers in BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/store"
	"github.com/dgraph-io/badger/v4"
)

// Keys:
// Header by height: "header:height:<height>" -> uint32 big-endian bits ++ block hash
// Network the store was created for: "meta:network" -> name
const (
	heightKeyFormat = "header:height:%d"
	networkKey      = "meta:network"
)

// ErrNetworkMismatch is returned when a store created for one network is
// opened for another.
var ErrNetworkMismatch = errors.New("header store network mismatch")

// HeaderStore implements store.HeaderRepository on BadgerDB.
type HeaderStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.HeaderRepository = (*HeaderStore)(nil)

// Open creates or opens a store at path for network. An empty path opens
// an in-memory store.
func Open(path string, network model.Network, logger *slog.Logger) (*HeaderStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open header store %q: %w", path, err)
	}

	s := &HeaderStore{
		db:     db,
		logger: logger.With("component", "header_store"),
	}
	if err := s.bindNetwork(network); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info("header store opened", "path", path, "network", network.String())
	return s, nil
}

func (s *HeaderStore) bindNetwork(network model.Network) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(networkKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set([]byte(networkKey), []byte(network.String()))
		}
		if err != nil {
			return err
		}
		stored, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(stored) != network.String() {
			return fmt.Errorf("%w: store holds %q, want %q", ErrNetworkMismatch, stored, network)
		}
		return nil
	})
}

func (s *HeaderStore) GetHeader(_ context.Context, height uint64) (store.StoredHeader, error) {
	var header store.StoredHeader
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(heightKey(height))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) <= 4 {
				return fmt.Errorf("corrupt header at height %d: %d bytes", height, len(val))
			}
			header.Bits = model.CompactTarget(binary.BigEndian.Uint32(val[:4]))
			header.Hash = string(val[4:])
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.StoredHeader{}, fmt.Errorf("header at height %d: %w", height, store.ErrNotFound)
	}
	if err != nil {
		return store.StoredHeader{}, fmt.Errorf("read header at height %d: %w", height, err)
	}
	return header, nil
}

func (s *HeaderStore) PutHeader(_ context.Context, height uint64, header store.StoredHeader) error {
	if header.Hash == "" {
		return fmt.Errorf("write header at height %d: empty block hash", height)
	}
	val := make([]byte, 4, 4+len(header.Hash))
	binary.BigEndian.PutUint32(val, uint32(header.Bits))
	val = append(val, header.Hash...)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(heightKey(height), val)
	}); err != nil {
		return fmt.Errorf("write header at height %d: %w", height, err)
	}
	metrics.HeaderStoreWrites.Inc()
	return nil
}

func (s *HeaderStore) Close() error {
	return s.db.Close()
}

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf(heightKeyFormat, height))
}
