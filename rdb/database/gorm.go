package database

import (
	"context"

	"github.com/hatlonely/orm/cfg"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/query"
	"github.com/hatlonely/orm/ref"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	ref.MustRegisterT[*GormProvider](NewGormProviderWithOptions)
}

type GormProviderOptions struct {
	// Driver 数据库驱动：sqlite, mysql
	Driver string `cfg:"driver" def:"sqlite" validate:"oneof=sqlite sqlite3 mysql"`
	DSN    string `cfg:"dsn" validate:"required"`

	MaxConns int `cfg:"maxConns" def:"10"`
	MaxIdle  int `cfg:"maxIdle" def:"5"`

	// GormConfig 默认关闭 gorm 自身的日志
	GormConfig *gorm.Config `cfg:"-"`
}

// GormProvider 复用 gorm 的连接池作为 ConnectionProvider
// 已经使用 gorm 的应用可以和映射引擎共享同一组连接
type GormProvider struct {
	gdb *gorm.DB
	sql *SQLProvider
}

func NewGormProviderWithOptions(options *GormProviderOptions) (*GormProvider, error) {
	if options == nil {
		return nil, errors.New("gorm provider options is required")
	}
	opts := *options
	if err := cfg.SetDefaults(&opts); err != nil {
		return nil, errors.WithMessage(err, "failed to set default options")
	}
	if err := cfg.Validate(&opts); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	gormConfig := opts.GormConfig
	if gormConfig == nil {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}

	var gdb *gorm.DB
	var err error
	switch opts.Driver {
	case "sqlite", "sqlite3":
		gdb, err = gorm.Open(sqlite.Open(opts.DSN), gormConfig)
	case "mysql":
		gdb, err = gorm.Open(gormmysql.Open(opts.DSN), gormConfig)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	p, err := NewGormProvider(gdb)
	if err != nil {
		return nil, err
	}
	p.sql.db.SetMaxOpenConns(opts.MaxConns)
	p.sql.db.SetMaxIdleConns(opts.MaxIdle)
	return p, nil
}

// NewGormProvider 包装已有的 gorm.DB，方言由 gorm 的 Dialector 决定
func NewGormProvider(gdb *gorm.DB) (*GormProvider, error) {
	if gdb == nil {
		return nil, errors.New("gorm db is nil")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB from gorm")
	}
	p, err := NewSQLProvider(sqlDB, gdb.Dialector.Name())
	if err != nil {
		return nil, err
	}
	return &GormProvider{gdb: gdb, sql: p}, nil
}

func (p *GormProvider) Acquire(ctx context.Context, d *entity.Descriptor) (rdb.Connection, error) {
	return p.sql.Acquire(ctx, d)
}

func (p *GormProvider) Quoter() query.Quoter {
	return p.sql.Quoter()
}

func (p *GormProvider) Gorm() *gorm.DB {
	return p.gdb
}

func (p *GormProvider) Close() error {
	return p.sql.Close()
}
