package source

import (
	"context"

	"github.com/rushairer/upsertsql"
)

// Batch 一次从上游取出的记录，各记录可以携带不同的列
type Batch struct {
	Records []upsertsql.Record
}

// Len 记录数
func (b Batch) Len() int { return len(b.Records) }

// Source 上游数据源，数据取完后返回 io.EOF
type Source interface {
	Next(ctx context.Context) (Batch, error)
}

// Acker 需要确认才真正消费的数据源；批次全部写入成功后调用 Ack
type Acker interface {
	Ack(ctx context.Context) error
}
