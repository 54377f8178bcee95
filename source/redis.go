package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rushairer/upsertsql"
)

// DefaultBatchSize 未指定时每批读取的条数
const DefaultBatchSize = 500

// ListClient *redis.Client 满足该接口
type ListClient interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisListSource 从 Redis 列表头部读取 JSON 对象，每个对象是一条记录。
// Next 只读取不删除，Ack 后才从列表中裁掉；写入失败时元素仍留在列表里。
// 生产者需要用 RPUSH 追加到尾部
type RedisListSource struct {
	client    ListClient
	key       string
	batchSize int
	pending   int
}

var (
	_ Source = (*RedisListSource)(nil)
	_ Acker  = (*RedisListSource)(nil)
)

// NewRedisListSource 创建 Redis 列表数据源
func NewRedisListSource(client ListClient, key string, batchSize int) *RedisListSource {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RedisListSource{client: client, key: key, batchSize: batchSize}
}

// Next 读取列表头部最多 batchSize 个元素，列表为空时返回 io.EOF。
// 上一批未 Ack 时会再次读到同样的元素
func (s *RedisListSource) Next(ctx context.Context) (Batch, error) {
	s.pending = 0
	items, err := s.client.LRange(ctx, s.key, 0, int64(s.batchSize-1)).Result()
	if errors.Is(err, redis.Nil) {
		return Batch{}, io.EOF
	}
	if err != nil {
		return Batch{}, errors.Wrapf(upsertsql.ErrConnection, "lrange %s: %v", s.key, err)
	}
	if len(items) == 0 {
		return Batch{}, io.EOF
	}

	records := make([]upsertsql.Record, 0, len(items))
	for i, item := range items {
		rec, err := DecodeJSONRecord([]byte(item))
		if err != nil {
			return Batch{}, errors.Wrapf(err, "decode %s item %d", s.key, i)
		}
		records = append(records, rec)
	}
	s.pending = len(items)
	return Batch{Records: records}, nil
}

// Ack 从列表头部裁掉上一次 Next 读取的元素
func (s *RedisListSource) Ack(ctx context.Context) error {
	if s.pending == 0 {
		return nil
	}
	if err := s.client.LTrim(ctx, s.key, int64(s.pending), -1).Err(); err != nil {
		return errors.Wrapf(upsertsql.ErrConnection, "ltrim %s: %v", s.key, err)
	}
	s.pending = 0
	return nil
}

// DecodeJSONRecord 将 JSON 对象解码为记录，字段按名称排序；嵌套对象与数组保留为 JSON 文本
func DecodeJSONRecord(data []byte) (upsertsql.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrap(upsertsql.ErrInvalidArgument, err.Error())
	}
	if obj == nil {
		return nil, errors.Wrap(upsertsql.ErrInvalidArgument, "json item is not an object")
	}

	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	rec := make(upsertsql.Record, 0, len(names))
	for _, name := range names {
		v, err := JSONValue(obj[name])
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", name)
		}
		rec = append(rec, upsertsql.Field{Name: name, Value: v})
	}
	return rec, nil
}

// JSONValue 转换 JSON 解码结果（需 UseNumber），嵌套对象与数组保留为 JSON 文本
func JSONValue(x any) (upsertsql.Value, error) {
	switch x.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return upsertsql.Value{}, err
		}
		return upsertsql.Text(string(b)), nil
	}
	return upsertsql.ValueOf(x)
}
