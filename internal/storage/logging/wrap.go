// Package logging decorates a storage.Backend with trace/debug logging.
package logging

import (
	"context"
	"time"

	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

type backend struct {
	inner  storage.Backend
	logger pslog.Logger
	name   string
}

// Wrap decorates inner so every operation emits trace events and debug
// results. The request-scoped logger from ctx wins over the fallback logger
// when present.
func Wrap(inner storage.Backend, logger pslog.Logger, name string) storage.Backend {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &backend{inner: inner, logger: logger, name: name}
}

func (b *backend) log(ctx context.Context) pslog.Logger {
	logger := pslog.LoggerFromContext(ctx)
	if logger == nil {
		logger = b.logger
	}
	return logger.With("storage_backend", b.name)
}

func (b *backend) Get(ctx context.Context, recordID string) (*storage.Record, error) {
	logger := b.log(ctx)
	begin := time.Now()
	logger.Trace("storage.get.begin", "record_id", recordID)
	record, err := b.inner.Get(ctx, recordID)
	if err != nil {
		logger.Debug("storage.get.error", "record_id", recordID, "error", err, "elapsed", time.Since(begin))
		return nil, err
	}
	logger.Debug("storage.get.success", "record_id", recordID, "holder_name", record.HolderName, "expires_at_unix", record.ExpiresAtUnix, "elapsed", time.Since(begin))
	return record, nil
}

func (b *backend) Put(ctx context.Context, recordID string, record *storage.Record) error {
	logger := b.log(ctx)
	begin := time.Now()
	logger.Trace("storage.put.begin", "record_id", recordID)
	if err := b.inner.Put(ctx, recordID, record); err != nil {
		logger.Debug("storage.put.error", "record_id", recordID, "error", err, "elapsed", time.Since(begin))
		return err
	}
	logger.Debug("storage.put.success", "record_id", recordID, "holder_name", record.HolderName, "elapsed", time.Since(begin))
	return nil
}

func (b *backend) Delete(ctx context.Context, recordID string) error {
	logger := b.log(ctx)
	begin := time.Now()
	logger.Trace("storage.delete.begin", "record_id", recordID)
	if err := b.inner.Delete(ctx, recordID); err != nil {
		logger.Debug("storage.delete.error", "record_id", recordID, "error", err, "elapsed", time.Since(begin))
		return err
	}
	logger.Debug("storage.delete.success", "record_id", recordID, "elapsed", time.Since(begin))
	return nil
}

func (b *backend) List(ctx context.Context) ([]string, error) {
	logger := b.log(ctx)
	begin := time.Now()
	logger.Trace("storage.list.begin")
	ids, err := b.inner.List(ctx)
	if err != nil {
		logger.Debug("storage.list.error", "error", err, "elapsed", time.Since(begin))
		return nil, err
	}
	logger.Debug("storage.list.success", "count", len(ids), "elapsed", time.Since(begin))
	return ids, nil
}

func (b *backend) Close() error {
	return b.inner.Close()
}
