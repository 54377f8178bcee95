package upsertsql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument 参数形态错误（keyColumns 类型、行长度等）
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSchemaResolution 无法解析目标表的列信息
	ErrSchemaResolution = errors.New("schema resolution failed")

	// ErrConstraintViolation 存储拒绝语句（冲突键以外的约束）
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrConnection 存储不可达或认证失败
	ErrConnection = errors.New("connection error")
)

// ErrorKind 存储错误的分类
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindConstraint
	ErrorKindConnection
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConstraint:
		return "constraint"
	case ErrorKindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// WriteError 写入失败时返回的错误，保留驱动原始错误
type WriteError struct {
	Kind  ErrorKind
	Table TableIdentity
	Err   error
}

// Error implements the error interface
func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Table, e.Kind, e.Err)
}

// Unwrap 返回驱动原始错误
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is 能按分类匹配哨兵错误
func (e *WriteError) Is(target error) bool {
	switch target {
	case ErrConstraintViolation:
		return e.Kind == ErrorKindConstraint
	case ErrConnection:
		return e.Kind == ErrorKindConnection
	}
	return false
}

// ClassifyCommonError 识别与具体数据库无关的连接类错误
func ClassifyCommonError(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	if errors.Is(err, driver.ErrBadConn) {
		return ErrorKindConnection
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindConnection
	}
	return ErrorKindUnknown
}

func invalidArgumentf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
