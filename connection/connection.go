package connection

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/drivers/mysql"
	"github.com/rushairer/upsertsql/drivers/postgresql"
	"github.com/rushairer/upsertsql/drivers/sqlite"
	"github.com/rushairer/upsertsql/internal/config"
)

const pingTimeout = 5 * time.Second

// Dialect 按驱动名返回 database/sql 注册名与方言
func Dialect(name string) (string, upsertsql.Driver, error) {
	switch name {
	case config.DriverPostgres:
		return postgresql.DriverName, postgresql.DefaultDriver, nil
	case config.DriverPgx:
		return postgresql.PgxDriverName, postgresql.DefaultDriver, nil
	case config.DriverMySQL:
		return mysql.DriverName, mysql.DefaultDriver, nil
	case config.DriverSQLite:
		return sqlite.DriverName, sqlite.DefaultDriver, nil
	}
	return "", nil, errors.Errorf("unsupported driver %q", name)
}

// DataSource 当前驱动的连接串
func DataSource(cfg *config.Config) string {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return cfg.MySQL.DSN()
	case config.DriverSQLite:
		return cfg.SQLite.Path
	default:
		return cfg.Postgres.URL()
	}
}

// OpenSQL 打开关系库连接并检查可达性
func OpenSQL(ctx context.Context, cfg *config.Config) (*sql.DB, upsertsql.Driver, error) {
	driverName, dialect, err := Dialect(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(driverName, DataSource(cfg))
	if err != nil {
		return nil, nil, errors.Wrapf(upsertsql.ErrConnection, "open %s: %v", driverName, err)
	}
	if driverName == sqlite.DriverName {
		// 单连接避免 database is locked
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, errors.Wrapf(upsertsql.ErrConnection, "ping %s: %v", driverName, err)
	}
	return db, dialect, nil
}

// OpenRedis 创建 Redis 客户端并 Ping
func OpenRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Pass,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(upsertsql.ErrConnection, "ping redis: %v", err)
	}
	return client, nil
}

// OpenMongo 连接 MongoDB 并 Ping
func OpenMongo(ctx context.Context, cfg config.Mongo) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, errors.Wrapf(upsertsql.ErrConnection, "connect mongodb: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrapf(upsertsql.ErrConnection, "ping mongodb: %v", err)
	}
	return client, nil
}
