package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/monitoring"
	"github.com/rushairer/upsertsql/source"
)

// DefaultSchema 路径中表示使用连接默认 schema 的占位
const DefaultSchema = "-"

// Options 服务配置
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.PrometheusMetrics
	// WriterOptions 传给每个 writer 的选项（审计用户等）
	WriterOptions []upsertsql.Option
}

type writer interface {
	Write(ctx context.Context, columns []string, rows [][]upsertsql.Value) (int64, error)
}

// Server 批量写入 HTTP 服务
type Server struct {
	db      upsertsql.DB
	driver  upsertsql.Driver
	logger  *zap.Logger
	metrics *monitoring.PrometheusMetrics
	opts    []upsertsql.Option

	mu      sync.Mutex
	writers map[string]writer

	engine *gin.Engine
}

// WriteRequest 写入请求体
type WriteRequest struct {
	Keys    []string   `json:"keys" binding:"required,min=1,dive,required"`
	Columns []string   `json:"columns" binding:"required,min=1,dive,required"`
	Rows    [][]any    `json:"rows"`
	Guard   *GuardSpec `json:"guard"`
}

// GuardSpec 冲突更新守卫：待插入值 op 已存储值
type GuardSpec struct {
	Column string `json:"column" binding:"required"`
	Op     string `json:"op" binding:"required"`
}

// WriteResponse 写入结果
type WriteResponse struct {
	Table    string `json:"table"`
	Mode     string `json:"mode"`
	Rows     int    `json:"rows"`
	Affected int64  `json:"affected"`
}

// New 创建服务
func New(db upsertsql.DB, driver upsertsql.Driver, o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	s := &Server{
		db:      db,
		driver:  driver,
		logger:  o.Logger,
		metrics: o.Metrics,
		writers: make(map[string]writer),
	}
	s.opts = append(s.opts, upsertsql.WithLogger(o.Logger))
	if o.Metrics != nil {
		s.opts = append(s.opts, upsertsql.WithMetricsReporter(o.Metrics))
	}
	s.opts = append(s.opts, o.WriterOptions...)
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	// 行数据中的整数按 json.Number 解码，避免超过 2^53 的值经 float64 丢失精度
	binding.EnableDecoderUseNumber = true
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	router.POST("/v1/tables/:schema/:table/:mode", s.handleWrite)
	return router
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 addr，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleWrite(c *gin.Context) {
	schema := c.Param("schema")
	if schema == DefaultSchema {
		schema = ""
	}
	table := c.Param("table")
	mode := c.Param("mode")

	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.Wrap(upsertsql.ErrInvalidArgument, err.Error()))
		return
	}

	rows := make([][]upsertsql.Value, len(req.Rows))
	for i, raw := range req.Rows {
		row := make([]upsertsql.Value, len(raw))
		for j, x := range raw {
			v, err := source.JSONValue(x)
			if err != nil {
				s.fail(c, errors.Wrapf(err, "row %d column %d", i, j))
				return
			}
			row[j] = v
		}
		rows[i] = row
	}

	w, err := s.writer(c.Request.Context(), schema, table, mode, req.Keys, req.Guard)
	if err != nil {
		s.fail(c, err)
		return
	}

	affected, err := w.Write(c.Request.Context(), req.Columns, rows)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, WriteResponse{
		Table:    upsertsql.TableIdentity{Schema: schema, Name: table}.String(),
		Mode:     mode,
		Rows:     len(rows),
		Affected: affected,
	})
}

// writer 按 (schema, table, mode, keys, guard) 缓存 writer，表元数据只解析一次
func (s *Server) writer(ctx context.Context, schema, table, mode string, keys []string, guard *GuardSpec) (writer, error) {
	cacheKey := strings.Join([]string{schema, table, mode, strings.Join(keys, ","), guardKey(guard)}, "\x00")

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.writers[cacheKey]; ok {
		return w, nil
	}

	var (
		w   writer
		err error
	)
	switch mode {
	case "ignore":
		if guard != nil {
			return nil, errors.Wrap(upsertsql.ErrInvalidArgument, "guard is only valid in upsert mode")
		}
		w, err = upsertsql.NewInsertOrIgnoreWriter(ctx, s.db, s.driver, schema, table, keys, s.opts...)
	case "upsert":
		opts := s.opts
		if guard != nil {
			wm, gerr := upsertsql.Compare(guard.Column, guard.Op)
			if gerr != nil {
				return nil, gerr
			}
			opts = append(append([]upsertsql.Option(nil), s.opts...), upsertsql.WithWhereMaker(wm))
		}
		w, err = upsertsql.NewInsertOrUpdateWriter(ctx, s.db, s.driver, schema, table, keys, opts...)
	default:
		return nil, errors.Wrapf(upsertsql.ErrInvalidArgument, "unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	s.writers[cacheKey] = w
	return w, nil
}

func guardKey(g *GuardSpec) string {
	if g == nil {
		return ""
	}
	return g.Column + " " + g.Op
}

// statusOf 将错误分类映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, upsertsql.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, upsertsql.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, upsertsql.ErrSchemaResolution):
		return http.StatusNotFound
	case errors.Is(err, upsertsql.ErrConstraintViolation):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("write request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startTime)),
		)
	}
}
