package upsertsql

import "time"

// MetricsReporter 写入指标报告器接口
type MetricsReporter interface {
	// ObserveWrite 记录一次批量写入；status 为 success 或 fail
	ObserveWrite(table string, strategy ConflictStrategy, batchSize int, affected int64, duration time.Duration, status string)

	// IncError 记录错误，kind 取 ErrorKind.String()
	IncError(table string, kind string)
}

// NoopMetricsReporter 默认的空实现
type NoopMetricsReporter struct{}

var _ MetricsReporter = NoopMetricsReporter{}

func (NoopMetricsReporter) ObserveWrite(string, ConflictStrategy, int, int64, time.Duration, string) {}
func (NoopMetricsReporter) IncError(string, string) {}
