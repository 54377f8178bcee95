package loader

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/source"
)

// BatchWriter InsertOrIgnoreWriter 与 InsertOrUpdateWriter 都满足该接口
type BatchWriter interface {
	WriteRecords(ctx context.Context, records []upsertsql.Record) (int64, error)
}

// Stats 一次加载的累计结果
type Stats struct {
	Batches  int
	Rows     int64
	Affected int64
	// Skipped 因冲突或守卫未写入的行；MySQL 的更新计为 2，此值只作参考
	Skipped  int64
	Duration time.Duration
}

// Loader 从数据源逐批读取并顺序写入
type Loader struct {
	Writer    BatchWriter
	BatchSize int
	Logger    *zap.Logger
}

// New 创建加载器
func New(w BatchWriter, batchSize int, logger *zap.Logger) *Loader {
	return &Loader{Writer: w, BatchSize: batchSize, Logger: logger}
}

// Run 读取数据源直到 io.EOF；遇到第一个写入错误即停止，已提交的批次不回滚。
// 数据源实现 Acker 时，批次的所有分块写入成功后才确认
func (l *Loader) Run(ctx context.Context, src source.Source) (Stats, error) {
	if l.Writer == nil {
		return Stats{}, errors.Wrap(upsertsql.ErrInvalidArgument, "loader has no writer")
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var stats Stats
	startTime := time.Now()
	finish := func() Stats {
		stats.Duration = time.Since(startTime)
		return stats
	}

	for {
		batch, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return finish(), errors.Wrap(err, "read source")
		}

		for _, chunk := range chunks(batch.Records, l.BatchSize) {
			affected, err := l.Writer.WriteRecords(ctx, chunk)
			if err != nil {
				logger.Error("batch failed",
					zap.Int("batch", stats.Batches+1),
					zap.Int("rows", len(chunk)),
					zap.Error(err))
				return finish(), err
			}

			stats.Batches++
			stats.Rows += int64(len(chunk))
			stats.Affected += affected
			if skipped := int64(len(chunk)) - affected; skipped > 0 {
				stats.Skipped += skipped
			}
			logger.Debug("batch written",
				zap.Int("batch", stats.Batches),
				zap.Int("rows", len(chunk)),
				zap.Int64("affected", affected))
		}

		if acker, ok := src.(source.Acker); ok {
			if err := acker.Ack(ctx); err != nil {
				return finish(), errors.Wrap(err, "ack source")
			}
		}
	}

	finish()
	logger.Info("load finished",
		zap.Int("batches", stats.Batches),
		zap.Int64("rows", stats.Rows),
		zap.Int64("affected", stats.Affected),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func chunks(records []upsertsql.Record, size int) [][]upsertsql.Record {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 || size >= len(records) {
		return [][]upsertsql.Record{records}
	}
	out := make([][]upsertsql.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}
