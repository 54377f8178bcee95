package source_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/source"
)

func TestCSVSource_Batches(t *testing.T) {
	data := "id,name,email\n1,alice,a@x\n2,bob,\n3,carol,c@x\n"
	src := source.NewCSVSource(strings.NewReader(data), 2)
	src.EmptyAsNull = true
	ctx := context.Background()

	b1, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if b1.Len() != 2 {
		t.Fatalf("first batch len = %d, want 2", b1.Len())
	}
	if v, _ := b1.Records[0].Get("name"); !v.Equal(upsertsql.Text("alice")) {
		t.Errorf("name = %v", v)
	}
	if v, _ := b1.Records[1].Get("email"); !v.IsNull() {
		t.Errorf("empty cell should be null, got %v", v)
	}

	// 未确认时再次读取得到同一批
	again, err := src.Next(ctx)
	if err != nil || again.Len() != 2 {
		t.Fatalf("re-read = %d, %v", again.Len(), err)
	}
	if v, _ := again.Records[0].Get("id"); !v.Equal(upsertsql.Int(1)) {
		t.Errorf("re-read id = %v", v)
	}
	if err := src.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(list.items) != 1 {
		t.Fatalf("items after ack = %d, want 1", len(list.items))
	}

	b2, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := src.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if b2.Len() != 1 {
		t.Fatalf("second batch len = %d, want 1", b2.Len())
	}

	if _, err := src.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if got := strings.Join(src.Header(), ","); got != "id,name,email" {
		t.Errorf("header = %q", got)
	}
}

func TestCSVSource_EmptyInput(t *testing.T) {
	src := source.NewCSVSource(strings.NewReader(""), 10)
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestCSVSource_RaggedRow(t *testing.T) {
	src := source.NewCSVSource(strings.NewReader("id,name\n1\n"), 10)
	if _, err := src.Next(context.Background()); err == nil {
		t.Fatal("expected error for row with wrong field count")
	}
}

// fakeList 模拟 Redis 列表
type fakeList struct {
	items []string
	err   error
}

func (f *fakeList) LRange(_ context.Context, _ string, start, stop int64) *redis.StringSliceCmd {
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	if start >= int64(len(f.items)) {
		return redis.NewStringSliceResult([]string{}, nil)
	}
	end := min(stop+1, int64(len(f.items)))
	return redis.NewStringSliceResult(append([]string(nil), f.items[start:end]...), nil)
}

func (f *fakeList) LTrim(_ context.Context, _ string, start, _ int64) *redis.StatusCmd {
	f.items = f.items[min(start, int64(len(f.items))):]
	return redis.NewStatusResult("OK", nil)
}

func TestRedisListSource(t *testing.T) {
	list := &fakeList{items: []string{
		`{"id": 1, "name": "alice", "tags": ["a", "b"]}`,
		`{"id": 2, "score": 9.5}`,
		`{"id": 3, "active": true, "meta": {"k": "v"}}`,
	}}
	src := source.NewRedisListSource(list, "queue", 2)
	ctx := context.Background()

	b1, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if b1.Len() != 2 {
		t.Fatalf("first batch len = %d", b1.Len())
	}
	if v, _ := b1.Records[0].Get("id"); !v.Equal(upsertsql.Int(1)) {
		t.Errorf("id = %v", v)
	}
	if v, _ := b1.Records[0].Get("tags"); !v.Equal(upsertsql.Text(`["a","b"]`)) {
		t.Errorf("tags = %v", v)
	}
	if v, _ := b1.Records[1].Get("score"); !v.Equal(upsertsql.Float(9.5)) {
		t.Errorf("score = %v", v)
	}

	// 未确认时再次读取得到同一批
	again, err := src.Next(ctx)
	if err != nil || again.Len() != 2 {
		t.Fatalf("re-read = %d, %v", again.Len(), err)
	}
	if v, _ := again.Records[0].Get("id"); !v.Equal(upsertsql.Int(1)) {
		t.Errorf("re-read id = %v", v)
	}
	if err := src.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(list.items) != 1 {
		t.Fatalf("items after ack = %d, want 1", len(list.items))
	}

	b2, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := src.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if v, _ := b2.Records[0].Get("meta"); !v.Equal(upsertsql.Text(`{"k":"v"}`)) {
		t.Errorf("meta = %v", v)
	}
	if v, _ := b2.Records[0].Get("active"); !v.Equal(upsertsql.Bool(true)) {
		t.Errorf("active = %v", v)
	}

	if _, err := src.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestRedisListSource_Errors(t *testing.T) {
	ctx := context.Background()

	src := source.NewRedisListSource(&fakeList{err: errors.New("dial tcp: refused")}, "queue", 10)
	if _, err := src.Next(ctx); !errors.Is(err, upsertsql.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}

	src = source.NewRedisListSource(&fakeList{items: []string{`[1,2]`}}, "queue", 10)
	if _, err := src.Next(ctx); !errors.Is(err, upsertsql.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDocumentRecord(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec, err := source.DocumentRecord(bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "alice"},
		{Key: "age", Value: int32(30)},
		{Key: "created", Value: primitive.NewDateTimeFromTime(ts)},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Hanoi"}}},
		{Key: "tags", Value: bson.A{"x", "y"}},
		{Key: "deleted", Value: nil},
	})
	if err != nil {
		t.Fatalf("DocumentRecord: %v", err)
	}

	tests := []struct {
		field string
		want  upsertsql.Value
	}{
		{"_id", upsertsql.Text(oid.Hex())},
		{"name", upsertsql.Text("alice")},
		{"age", upsertsql.Int(30)},
		{"created", upsertsql.Time(ts)},
		{"address", upsertsql.Text(`{"city":"Hanoi"}`)},
		{"tags", upsertsql.Text(`["x","y"]`)},
		{"deleted", upsertsql.Null()},
	}
	for _, tt := range tests {
		got, ok := rec.Get(tt.field)
		if !ok {
			t.Errorf("field %s missing", tt.field)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
		}
	}
	if rec[0].Name != "_id" || rec[len(rec)-1].Name != "deleted" {
		t.Errorf("field order not preserved: %v", rec)
	}
}

func TestMongoSource_Pages(t *testing.T) {
	docs := []any{
		bson.D{{Key: "id", Value: int64(1)}},
		bson.D{{Key: "id", Value: int64(2)}},
		bson.D{{Key: "id", Value: int64(3)}},
	}
	cur, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	if err != nil {
		t.Fatalf("NewCursorFromDocuments: %v", err)
	}
	src := source.NewCursorSource(cur, 2)
	ctx := context.Background()
	defer src.Close(ctx)

	var sizes []int
	for {
		b, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, b.Len())
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("page sizes = %v, want [2 1]", sizes)
	}
}
