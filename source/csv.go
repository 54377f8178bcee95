package source

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"github.com/rushairer/upsertsql"
)

// CSVSource 从带表头的 CSV 读取记录，所有值按文本写入
type CSVSource struct {
	reader    *csv.Reader
	batchSize int
	header    []string
	// EmptyAsNull 为 true 时空单元格写入 NULL
	EmptyAsNull bool
}

var _ Source = (*CSVSource)(nil)

// NewCSVSource 创建 CSV 数据源，batchSize 为每次 Next 返回的最大行数
func NewCSVSource(r io.Reader, batchSize int) *CSVSource {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	reader := csv.NewReader(r)
	return &CSVSource{reader: reader, batchSize: batchSize}
}

// Header 表头；第一次 Next 之后可用
func (s *CSVSource) Header() []string {
	return s.header
}

// Next 读取下一批记录
func (s *CSVSource) Next(ctx context.Context) (Batch, error) {
	if s.header == nil {
		header, err := s.reader.Read()
		if err == io.EOF {
			return Batch{}, io.EOF
		}
		if err != nil {
			return Batch{}, errors.Wrap(err, "read csv header")
		}
		s.header = header
		s.reader.FieldsPerRecord = len(header)
	}

	records := make([]upsertsql.Record, 0, s.batchSize)
	for len(records) < s.batchSize {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		line, err := s.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Batch{}, errors.Wrap(err, "read csv row")
		}

		rec := make(upsertsql.Record, len(line))
		for i, cell := range line {
			v := upsertsql.Text(cell)
			if cell == "" && s.EmptyAsNull {
				v = upsertsql.Null()
			}
			rec[i] = upsertsql.Field{Name: s.header[i], Value: v}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return Batch{}, io.EOF
	}
	return Batch{Records: records}, nil
}
