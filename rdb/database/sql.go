package database

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hatlonely/orm/cfg"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/query"
	"github.com/hatlonely/orm/ref"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*SQLProvider](NewSQLProviderWithOptions)
}

type SQLProviderOptions struct {
	Driver string `cfg:"driver" def:"sqlite3" validate:"oneof=mysql postgres sqlite3"`

	// DSN 不为空时直接使用，忽略下面的连接参数
	DSN string `cfg:"dsn"`

	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`

	// Schema postgres 的 search_path
	Schema  string `cfg:"schema"`
	SSLMode string `cfg:"sslMode" def:"disable"`

	// CredentialsFile 属性文件，其中的值用于替换上面各项中的 ${key} 占位符，找不到时再查环境变量
	CredentialsFile string `cfg:"credentialsFile"`

	MaxConns        int           `cfg:"maxConns" def:"10"`
	MaxIdle         int           `cfg:"maxIdle" def:"5"`
	ConnMaxLifetime time.Duration `cfg:"connMaxLifetime"`
}

// SQLProvider 基于 database/sql 连接池的 ConnectionProvider
type SQLProvider struct {
	db      *sql.DB
	dialect *dialect
}

func NewSQLProviderWithOptions(options *SQLProviderOptions) (*SQLProvider, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	opts := *options
	if err := cfg.SetDefaults(&opts); err != nil {
		return nil, errors.WithMessage(err, "failed to set default options")
	}
	if err := cfg.Validate(&opts); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	if err := resolveCredentials(&opts); err != nil {
		return nil, err
	}

	d, err := dialectOf(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := buildDSN(&opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", d.driver)
	}

	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MaxIdle)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect %s", d.driver)
	}

	return &SQLProvider{db: db, dialect: d}, nil
}

// NewSQLProvider 包装已经打开的连接池，driver 决定占位符和主键回填方式
func NewSQLProvider(db *sql.DB, driver string) (*SQLProvider, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	d, err := dialectOf(driver)
	if err != nil {
		return nil, err
	}
	return &SQLProvider{db: db, dialect: d}, nil
}

// resolveCredentials 替换连接参数中的 ${key} 占位符
func resolveCredentials(opts *SQLProviderOptions) error {
	lookups := []cfg.Lookup{cfg.Env}
	if opts.CredentialsFile != "" {
		props, err := cfg.LoadProperties(opts.CredentialsFile)
		if err != nil {
			return errors.WithMessage(err, "failed to load credentials")
		}
		lookups = []cfg.Lookup{cfg.Map(props), cfg.Env}
	}

	for _, field := range []*string{
		&opts.DSN, &opts.Host, &opts.Port, &opts.Database,
		&opts.Username, &opts.Password, &opts.Schema,
	} {
		*field = cfg.Expand(*field, lookups...)
	}
	return nil
}

func buildDSN(opts *SQLProviderOptions) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}

	switch opts.Driver {
	case "mysql":
		port := opts.Port
		if port == "" {
			port = "3306"
		}
		c := mysql.NewConfig()
		c.User = opts.Username
		c.Passwd = opts.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(opts.Host, port)
		c.DBName = opts.Database
		c.Params = map[string]string{"charset": opts.Charset}
		return c.FormatDSN(), nil
	case "postgres":
		port := opts.Port
		if port == "" {
			port = "5432"
		}
		params := url.Values{}
		params.Set("sslmode", opts.SSLMode)
		if opts.Schema != "" {
			params.Set("search_path", opts.Schema)
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(opts.Host, port),
			Path:     "/" + opts.Database,
			RawQuery: params.Encode(),
		}
		if opts.Username != "" {
			u.User = url.UserPassword(opts.Username, opts.Password)
		}
		return u.String(), nil
	case "sqlite3":
		if opts.Database == "" {
			return "file::memory:?cache=shared", nil
		}
		return opts.Database, nil
	}
	return "", errors.Errorf("unsupported driver: %s", opts.Driver)
}

// Acquire 从连接池中取出一个连接供调用方独占，d 用于判断主键能否通过 LastInsertId 回填
func (p *SQLProvider) Acquire(ctx context.Context, d *entity.Descriptor) (rdb.Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection")
	}
	return &Conn{
		db:         conn,
		conn:       conn,
		dialect:    p.dialect,
		integerKey: d == nil || d.PrimaryKey() == nil || d.PrimaryKey().Kind() == entity.KindInt32,
	}, nil
}

// Quoter 驱动对应的标识符引用规则
func (p *SQLProvider) Quoter() query.Quoter {
	return p.dialect.quoter
}

func (p *SQLProvider) Driver() string {
	return p.dialect.driver
}

func (p *SQLProvider) DB() *sql.DB {
	return p.db
}

func (p *SQLProvider) Close() error {
	return p.db.Close()
}
