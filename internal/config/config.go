package config

import (
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// 支持的 DB_DRIVER 取值
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Config 进程配置，全部来自环境变量
type Config struct {
	Env       string   `mapstructure:"env"`
	DBDriver  string   `mapstructure:"db_driver"`
	Postgres  Postgres `mapstructure:"pgsql"`
	MySQL     MySQL    `mapstructure:"mysql"`
	SQLite    SQLite   `mapstructure:"sqlite"`
	Mongo     Mongo    `mapstructure:"mongo"`
	Redis     Redis    `mapstructure:"redis"`
	Logger    Logger   `mapstructure:"logger"`
	AuditUser string   `mapstructure:"audit_user"`
	HTTPAddr  string   `mapstructure:"http_addr"`
}

// Postgres is the configuration for PostgreSQL
type Postgres struct {
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"sslmode"`
}

// MySQL is the configuration for MySQL
type MySQL struct {
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Name string `mapstructure:"name"`
}

// SQLite is the configuration for SQLite
type SQLite struct {
	Path string `mapstructure:"path"`
}

// Mongo is the configuration for MongoDB
type Mongo struct {
	Prefix  string `mapstructure:"prefix"`
	Host    string `mapstructure:"host"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	RSName  string `mapstructure:"rs_name"`
	DB      string `mapstructure:"db"`
	NoCreds bool   `mapstructure:"-"`
}

// Redis is the configuration for Redis
type Redis struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

// Logger is the configuration for the logger
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

var bindings = map[string]string{
	"env":           "env",
	"db_driver":     "DB_DRIVER",
	"pgsql.user":    "PGSQL_DB_USER",
	"pgsql.pass":    "PGSQL_DB_PASS",
	"pgsql.host":    "PGSQL_DB_HOST",
	"pgsql.port":    "PGSQL_DB_PORT",
	"pgsql.name":    "PGSQL_DB_NAME",
	"pgsql.sslmode": "PGSQL_DB_SSLMODE",
	"mysql.user":    "MYSQL_DB_USER",
	"mysql.pass":    "MYSQL_DB_PASS",
	"mysql.host":    "MYSQL_DB_HOST",
	"mysql.port":    "MYSQL_DB_PORT",
	"mysql.name":    "MYSQL_DB_NAME",
	"sqlite.path":   "SQLITE_PATH",
	"mongo.prefix":  "MONGO_PREFIX",
	"mongo.host":    "MONGO_HOST",
	"mongo.user":    "MONGO_USER",
	"mongo.pass":    "MONGO_PASS",
	"mongo.rs_name": "MONGO_RS_NAME",
	"mongo.db":      "MONGO_DB",
	"redis.host":    "REDIS_HOST",
	"redis.port":    "REDIS_PORT",
	"redis.pass":    "REDIS_PASS",
	"redis.db":      "REDIS_DB",
	"logger.level":  "LOG_LEVEL",
	"logger.format": "LOG_FORMAT",
	"logger.file":   "LOG_FILE",
	"audit_user":    "AUDIT_USER",
	"http_addr":     "HTTP_ADDR",
}

// Load 从环境变量读取配置
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("sqlite.path", "upsertsql.db")
	v.SetDefault("mongo.prefix", "mongodb://")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("audit_user", "DEFAULT_USER")
	v.SetDefault("http_addr", ":8080")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.Mongo.NoCreds = cfg.Env == "local"

	switch cfg.DBDriver {
	case DriverPostgres, DriverPgx, DriverMySQL, DriverSQLite:
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return &cfg, nil
}

// URL PostgreSQL 连接串，端口为空时省略
func (p Postgres) URL() string {
	host := p.Host
	if p.Port != "" {
		host = net.JoinHostPort(p.Host, p.Port)
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(p.User, p.Pass),
		Host:   host,
		Path:   "/" + p.Name,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// DSN go-sql-driver/mysql 连接串
func (m MySQL) DSN() string {
	port := m.Port
	if port == "" {
		port = "3306"
	}
	c := mysql.NewConfig()
	c.User = m.User
	c.Passwd = m.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.Host, port)
	c.DBName = m.Name
	c.ParseTime = true
	return c.FormatDSN()
}

// URI MongoDB 连接串；local 环境不带凭据与选项
func (m Mongo) URI() string {
	if m.NoCreds {
		return m.Prefix + m.Host
	}

	uri := m.Prefix + url.UserPassword(m.User, m.Pass).String() + "@" + m.Host
	opts := url.Values{}
	if m.RSName != "" {
		opts.Set("replicaSet", m.RSName)
	}
	if m.DB != "" {
		opts.Set("authSource", m.DB)
	}
	if len(opts) == 0 {
		return uri
	}
	if !strings.Contains(m.Host, "/") {
		uri += "/"
	}
	return uri + "?" + opts.Encode()
}

// Addr Redis 地址
func (r Redis) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}
