package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// maxConflictRetries bounds retries of a commit that lost a transaction
// conflict.
const maxConflictRetries = 5

// Rows are split into chunks so no single value approaches Badger's value
// size limit, which is 1 MiB for in-memory databases.
const (
	badgerChunkRows  = 4096
	badgerChunkBytes = 512 << 10
)

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM, for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	Namespace  string
	// Logger receives Badger's internal log. nil silences it.
	Logger *slog.Logger
}

// Badger stores each relation's result as a header key plus row chunk keys.
// A commit writes the header, every chunk and the commit sequence in a single
// read-write transaction, so readers see either the old result or the new one.
type Badger struct {
	db     *badger.DB
	prefix string
	logger *slog.Logger
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBadger opens a Badger database.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		logger = slog.New(slog.DiscardHandler)
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db, prefix: "ns/" + cfg.Namespace + "/", logger: logger}, nil
}

func (b *Badger) resultKey(relation string) []byte {
	return []byte(b.prefix + "result/" + relation)
}

func (b *Badger) chunkKey(relation string, i int) []byte {
	return fmt.Appendf(nil, "%srows/%s/%08d", b.prefix, relation, i)
}

func (b *Badger) seqKey() []byte {
	return []byte(b.prefix + "seq")
}

// Commit implements core.ResultStore.
func (b *Badger) Commit(ctx context.Context, res *core.MaterializedResult) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return b.commitTxn(txn, res)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		b.logger.Debug("commit conflict, retrying", slog.String("relation", res.Relation), slog.Int("attempt", attempt+1))
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("commit %s: %d rows exceed one badger transaction: %w", res.Relation, len(res.Rows), err)
	}
	if err != nil {
		return err
	}

	b.logger.Debug("result committed",
		slog.String("relation", res.Relation),
		slog.Uint64("version", res.Version),
		slog.Uint64("seq", res.Seq),
		slog.Int("rows", len(res.Rows)))
	return nil
}

func (b *Badger) commitTxn(txn *badger.Txn, res *core.MaterializedResult) error {
	var current uint64
	var prevChunks int
	prev, err := b.header(txn, res.Relation)
	switch {
	case errors.Is(err, core.ErrNotMaterialized):
	case err != nil:
		return err
	default:
		current, prevChunks = prev.Version, prev.Chunks
	}
	if err := prepare(res, current, time.Now()); err != nil {
		return err
	}

	var seq uint64
	item, err := txn.Get(b.seqKey())
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("read commit sequence: %w", err)
	default:
		if err := item.Value(func(v []byte) error {
			seq = binary.BigEndian.Uint64(v)
			return nil
		}); err != nil {
			return err
		}
	}
	seq++

	chunks, err := encodeChunks(res.Rows, badgerChunkRows, badgerChunkBytes)
	if err != nil {
		return err
	}
	stored := *res
	stored.Seq = seq
	header, err := encodeHeader(&stored, len(chunks))
	if err != nil {
		return err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	if err := txn.Set(b.seqKey(), buf[:]); err != nil {
		return err
	}
	for i, chunk := range chunks {
		if err := txn.Set(b.chunkKey(res.Relation, i), chunk); err != nil {
			return err
		}
	}
	for i := len(chunks); i < prevChunks; i++ {
		if err := txn.Delete(b.chunkKey(res.Relation, i)); err != nil {
			return err
		}
	}
	if err := txn.Set(b.resultKey(res.Relation), header); err != nil {
		return err
	}
	res.Seq = seq
	return nil
}

func (b *Badger) header(txn *badger.Txn, relation string) (*envelope, error) {
	item, err := txn.Get(b.resultKey(relation))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notMaterialized(relation)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relation, err)
	}
	var env *envelope
	err = item.Value(func(v []byte) error {
		var derr error
		env, derr = decodeEnvelope(v)
		return derr
	})
	return env, err
}

func (b *Badger) get(txn *badger.Txn, relation string) (*core.MaterializedResult, error) {
	env, err := b.header(txn, relation)
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, 0, env.RowCount)
	for i := 0; i < env.Chunks; i++ {
		item, err := txn.Get(b.chunkKey(relation, i))
		if err != nil {
			return nil, fmt.Errorf("read %s chunk %d: %w", relation, i, err)
		}
		err = item.Value(func(v []byte) error {
			part, derr := decodeRows(v, env.Columns)
			rows = append(rows, part...)
			return derr
		})
		if err != nil {
			return nil, err
		}
	}
	if len(rows) != env.RowCount {
		return nil, fmt.Errorf("read %s: got %d rows, header records %d", relation, len(rows), env.RowCount)
	}
	return env.result(rows), nil
}

// Read implements core.ResultStore.
func (b *Badger) Read(ctx context.Context, relation string) (*core.MaterializedResult, error) {
	var res *core.MaterializedResult
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		res, err = b.get(txn, relation)
		return err
	})
	return res, err
}

// CurrentVersion implements core.ResultStore.
func (b *Badger) CurrentVersion(ctx context.Context, relation string) (uint64, error) {
	var v uint64
	err := b.db.View(func(txn *badger.Txn) error {
		env, err := b.header(txn, relation)
		if errors.Is(err, core.ErrNotMaterialized) {
			return nil
		}
		if err != nil {
			return err
		}
		v = env.Version
		return nil
	})
	return v, err
}

// List implements core.ResultStore. Only headers are read.
func (b *Badger) List(ctx context.Context) ([]core.VersionInfo, error) {
	var out []core.VersionInfo
	prefix := []byte(b.prefix + "result/")
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				env, err := decodeEnvelope(v)
				if err != nil {
					return err
				}
				info := env.result(nil).Info()
				info.Rows = env.RowCount
				out = append(out, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Relation < out[j].Relation })
	return out, err
}

// Close implements core.ResultStore.
func (b *Badger) Close() error {
	return b.db.Close()
}
