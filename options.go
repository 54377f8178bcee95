package upsertsql

import (
	"time"

	"go.uber.org/zap"
)

// Option writer 构造选项
type Option func(*options)

type options struct {
	auditUser    string
	auditColumns AuditColumns
	whereMaker   WhereMaker
	logger       *zap.Logger
	reporter     MetricsReporter
	resolver     TableMetadataResolver
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		auditUser:    DefaultAuditUser,
		auditColumns: DefaultAuditColumns,
		logger:       zap.NewNop(),
		reporter:     NoopMetricsReporter{},
		now:          time.Now,
	}
}

// WithAuditUser 设置写入 created_by / updated_by 的值
func WithAuditUser(user string) Option {
	return func(o *options) {
		o.auditUser = user
	}
}

// WithAuditColumns 覆盖默认审计列名，空字符串表示不使用该列
func WithAuditColumns(ac AuditColumns) Option {
	return func(o *options) {
		o.auditColumns = ac
	}
}

// WithWhereMaker 设置冲突更新的守卫条件（仅 InsertOrUpdateWriter 使用）
func WithWhereMaker(wm WhereMaker) Option {
	return func(o *options) {
		o.whereMaker = wm
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsReporter 设置指标报告器
func WithMetricsReporter(reporter MetricsReporter) Option {
	return func(o *options) {
		if reporter != nil {
			o.reporter = reporter
		}
	}
}

// WithResolver 替换默认的 SchemaResolver
func WithResolver(resolver TableMetadataResolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

// WithClock 设置 updated_at 使用的时钟
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
