package session

import (
	"context"
	"io"
	"sync"

	"github.com/hatlonely/orm/log"
	"github.com/hatlonely/orm/log/logger"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/builder"
	"github.com/hatlonely/orm/rdb/database"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/query"
	"github.com/hatlonely/orm/rdb/repository"
	"github.com/hatlonely/orm/ref"
	"github.com/pkg/errors"
)

// ConnectionProvider 为会话提供连接，d 是会话绑定的实体描述，没有绑定实体时为 nil
type ConnectionProvider interface {
	Acquire(ctx context.Context, d *entity.Descriptor) (rdb.Connection, error)
}

// quoterProvider 提供方言对应的标识符引用规则
type quoterProvider interface {
	Quoter() query.Quoter
}

type Options struct {
	// Provider 连接提供者，例如 database.SQLProvider
	Provider *ref.TypeOptions `cfg:"provider" validate:"required"`

	// Observable 不为空时为连接添加指标、追踪和日志
	Observable *database.ObservableOptions `cfg:"observable"`

	Logger *ref.TypeOptions `cfg:"logger"`

	// Model 会话绑定的实体类型，传给 Provider.Acquire
	Model any `cfg:"-"`
}

// Session 持有一个独占连接，对外提供增删改查
// 同一个 Session 不能在多个 goroutine 中并发使用
type Session struct {
	provider     ConnectionProvider
	ownsProvider bool
	model        any
	registry     *entity.Registry
	logger       logger.Logger
	observable   *database.ObservableOptions

	mu   sync.Mutex
	conn rdb.Connection
	repo *repository.Repository
}

type Option func(*Session)

func WithRegistry(registry *entity.Registry) Option {
	return func(s *Session) {
		s.registry = registry
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithObservable 为连接添加指标、追踪和日志
func WithObservable(options *database.ObservableOptions) Option {
	return func(s *Session) {
		s.observable = options
	}
}

// New 创建会话，model 为绑定的实体类型，可以为 nil
func New(provider ConnectionProvider, model any, opts ...Option) *Session {
	s := &Session{provider: provider, model: model}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = entity.Default()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// NewWithOptions 通过 ref 创建连接提供者，会话关闭时一并关闭
func NewWithOptions(options *Options, opts ...Option) (*Session, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Provider == nil {
		return nil, errors.New("provider is required")
	}

	obj, err := ref.New(options.Provider.Namespace, options.Provider.Type, options.Provider.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create provider")
	}
	provider, ok := obj.(ConnectionProvider)
	if !ok {
		if c, ok := obj.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, errors.Errorf("%T does not implement ConnectionProvider", obj)
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		if c, ok := obj.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	s := New(provider, options.Model, append([]Option{
		WithLogger(l),
		WithObservable(options.Observable),
	}, opts...)...)
	s.ownsProvider = true
	return s, nil
}

// Open 获取连接，已经打开时直接返回
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	if s.provider == nil {
		return errors.New("provider is nil")
	}

	var d *entity.Descriptor
	var table string
	if s.model != nil {
		var err error
		if d, err = s.registry.Describe(s.model); err != nil {
			return err
		}
		table = d.Table()
	}

	conn, err := s.provider.Acquire(ctx, d)
	if err != nil {
		return errors.WithMessage(err, "failed to acquire connection")
	}

	if s.observable != nil {
		obs, err := database.NewObservableConnection(conn, table, s.observable)
		if err != nil {
			_ = conn.Close()
			return err
		}
		conn = obs
	}

	b := builder.New()
	if qp, ok := s.provider.(quoterProvider); ok {
		b = builder.New(builder.WithQuoter(qp.Quoter()))
	}

	s.conn = conn
	s.repo = repository.New(conn,
		repository.WithRegistry(s.registry),
		repository.WithBuilder(b),
		repository.WithLogger(s.logger),
	)
	s.logger.DebugContext(ctx, "session opened", "entity", table)
	return nil
}

// Close 释放连接，重复调用无副作用
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
		s.repo = nil
	}
	if s.ownsProvider {
		s.ownsProvider = false
		if c, ok := s.provider.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}

func (s *Session) current() (*repository.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil, rdb.ErrSessionNotOpen
	}
	return s.repo, nil
}

// Insert 插入对象，数据库生成的主键回填到对象
func (s *Session) Insert(ctx context.Context, obj any) error {
	repo, err := s.current()
	if err != nil {
		return err
	}
	return repo.Create(ctx, obj)
}

// Save 按主键更新对象
func (s *Session) Save(ctx context.Context, obj any) error {
	repo, err := s.current()
	if err != nil {
		return err
	}
	return repo.Update(ctx, obj)
}

// Remove 按主键删除对象
func (s *Session) Remove(ctx context.Context, obj any) error {
	repo, err := s.current()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, obj)
}

func (s *Session) IsUnique(ctx context.Context, obj any) (bool, error) {
	repo, err := s.current()
	if err != nil {
		return false, err
	}
	return repo.IsUnique(ctx, obj)
}

// Find 按字段等值条件查询
func Find[T any](ctx context.Context, s *Session, field string, value any) (*Result[T], error) {
	repo, err := s.current()
	if err != nil {
		return nil, err
	}
	list, err := repository.Find[T](ctx, repo, field, value)
	if err != nil {
		return nil, err
	}
	return NewResult(list), nil
}

func FindAll[T any](ctx context.Context, s *Session) (*Result[T], error) {
	repo, err := s.current()
	if err != nil {
		return nil, err
	}
	list, err := repository.FindAll[T](ctx, repo)
	if err != nil {
		return nil, err
	}
	return NewResult(list), nil
}
