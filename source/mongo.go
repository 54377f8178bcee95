package source

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rushairer/upsertsql"
)

// MongoSource 按页遍历集合游标
type MongoSource struct {
	cursor    *mongo.Cursor
	batchSize int
}

var _ Source = (*MongoSource)(nil)

// NewMongoSource 查询集合，filter 为空时读取全部文档
func NewMongoSource(ctx context.Context, coll *mongo.Collection, filter any, batchSize int) (*MongoSource, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := coll.Find(ctx, filter, options.Find().SetBatchSize(int32(batchSize)))
	if err != nil {
		return nil, errors.Wrapf(upsertsql.ErrConnection, "find %s: %v", coll.Name(), err)
	}
	return NewCursorSource(cur, batchSize), nil
}

// NewCursorSource 使用已有游标
func NewCursorSource(cur *mongo.Cursor, batchSize int) *MongoSource {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &MongoSource{cursor: cur, batchSize: batchSize}
}

// Next 读取下一页文档
func (s *MongoSource) Next(ctx context.Context) (Batch, error) {
	records := make([]upsertsql.Record, 0, s.batchSize)
	for len(records) < s.batchSize && s.cursor.Next(ctx) {
		var doc bson.D
		if err := s.cursor.Decode(&doc); err != nil {
			return Batch{}, errors.Wrap(err, "decode document")
		}
		rec, err := DocumentRecord(doc)
		if err != nil {
			return Batch{}, err
		}
		records = append(records, rec)
	}
	if err := s.cursor.Err(); err != nil {
		return Batch{}, errors.Wrap(err, "iterate cursor")
	}
	if len(records) == 0 {
		return Batch{}, io.EOF
	}
	return Batch{Records: records}, nil
}

// Close 关闭游标
func (s *MongoSource) Close(ctx context.Context) error {
	return s.cursor.Close(ctx)
}

// DocumentRecord 将 BSON 文档转换为记录，字段保持文档顺序
// ObjectID 转为十六进制文本，嵌套文档与数组转为 JSON 文本
func DocumentRecord(doc bson.D) (upsertsql.Record, error) {
	rec := make(upsertsql.Record, 0, len(doc))
	for _, e := range doc {
		v, err := bsonValue(e.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", e.Key)
		}
		rec = append(rec, upsertsql.Field{Name: e.Key, Value: v})
	}
	return rec, nil
}

func bsonValue(x any) (upsertsql.Value, error) {
	switch t := x.(type) {
	case primitive.ObjectID:
		return upsertsql.Text(t.Hex()), nil
	case primitive.DateTime:
		return upsertsql.Time(t.Time().UTC()), nil
	case primitive.Timestamp:
		return upsertsql.Int(int64(t.T)), nil
	case primitive.Decimal128:
		return upsertsql.Text(t.String()), nil
	case primitive.Binary:
		return upsertsql.Bytes(t.Data), nil
	case primitive.Null, primitive.Undefined:
		return upsertsql.Null(), nil
	case bson.D, bson.M, bson.A:
		b, err := json.Marshal(plain(t))
		if err != nil {
			return upsertsql.Value{}, err
		}
		return upsertsql.Text(string(b)), nil
	}
	return upsertsql.ValueOf(x)
}

// plain 把嵌套的 BSON 结构转换为可以 JSON 编码的普通值
func plain(x any) any {
	switch t := x.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = plain(v)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = plain(v)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	}
	return x
}
