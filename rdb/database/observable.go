package database

import (
	"context"
	"time"

	"github.com/hatlonely/orm/log"
	"github.com/hatlonely/orm/log/logger"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObservableOptions struct {
	// Name 组件名称，作为指标名前缀、日志的 component 字段和 span 的 component 属性
	Name string `cfg:"name" def:"rdb"`

	// Logger 日志记录器配置，为空时使用默认日志器
	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableLogging bool `cfg:"enableLogging"`
	EnableTracing bool `cfg:"enableTracing"`

	// Registerer 指标注册位置，为空时使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer `cfg:"-"`
}

// ObservableMetrics 封装 prometheus 指标
type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
}

// NewObservableMetrics 创建并注册指标，同名指标已注册时复用已有的收集器
func NewObservableMetrics(name string, registerer prometheus.Registerer) (*ObservableMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	operationCounter, err := register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_operations_total",
			Help: "Total number of statements executed",
		},
		[]string{"operation", "entity", "status"},
	))
	if err != nil {
		return nil, err
	}
	operationDuration, err := register(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_operation_duration_seconds",
			Help:    "Duration of statements in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation", "entity"},
	))
	if err != nil {
		return nil, err
	}
	activeOperations, err := register(registerer, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name + "_active_operations",
			Help: "Number of statements in flight",
		},
		[]string{"operation"},
	))
	if err != nil {
		return nil, err
	}

	return &ObservableMetrics{
		operationCounter:  operationCounter,
		operationDuration: operationDuration,
		activeOperations:  activeOperations,
	}, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, errors.Wrap(err, "failed to register metrics")
	}
	return c, nil
}

// ObservableConnection 装饰器，为任何 rdb.Connection 添加指标、追踪和日志
type ObservableConnection struct {
	conn   rdb.Connection
	entity string

	logger  logger.Logger
	metrics *ObservableMetrics
	tracer  trace.Tracer
	name    string
}

// NewObservableConnection entity 作为指标和日志的 entity 维度，通常是表名
func NewObservableConnection(conn rdb.Connection, entity string, options *ObservableOptions) (*ObservableConnection, error) {
	if conn == nil {
		return nil, errors.New("connection is nil")
	}
	if options == nil {
		return nil, errors.New("options is nil")
	}

	name := options.Name
	if name == "" {
		name = "rdb"
	}
	obs := &ObservableConnection{conn: conn, entity: entity, name: name}

	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("observableConnection")
	}

	if options.EnableMetrics {
		metrics, err := NewObservableMetrics(name, options.Registerer)
		if err != nil {
			return nil, err
		}
		obs.metrics = metrics
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer("rdb." + name)
	}

	return obs, nil
}

// observeOperation 统一的操作观测逻辑
func (obs *ObservableConnection) observeOperation(ctx context.Context, operation string, stmt *rdb.Statement, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		attrs := []attribute.KeyValue{
			attribute.String("component", obs.name),
			attribute.String("operation", operation),
			attribute.String("entity", obs.entity),
		}
		if stmt != nil {
			attrs = append(attrs, attribute.String("db.statement", stmt.SQL))
		}
		ctx, span = obs.tracer.Start(ctx, "rdb."+operation, trace.WithAttributes(attrs...))
		defer span.End()
	}

	if obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, obs.entity, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation, obs.entity).Observe(duration.Seconds())
	}

	if obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "statement failed",
				"component", obs.name,
				"operation", operation,
				"entity", obs.entity,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.DebugContext(ctx, "statement completed",
				"component", obs.name,
				"operation", operation,
				"entity", obs.entity,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (obs *ObservableConnection) Query(ctx context.Context, stmt *rdb.Statement) (rdb.Cursor, error) {
	var cursor rdb.Cursor
	err := obs.observeOperation(ctx, "query", stmt, func(ctx context.Context) error {
		var queryErr error
		cursor, queryErr = obs.conn.Query(ctx, stmt)
		return queryErr
	})
	return cursor, err
}

func (obs *ObservableConnection) Exec(ctx context.Context, stmt *rdb.Statement) (*rdb.ExecResult, error) {
	var result *rdb.ExecResult
	err := obs.observeOperation(ctx, "exec", stmt, func(ctx context.Context) error {
		var execErr error
		result, execErr = obs.conn.Exec(ctx, stmt)
		return execErr
	})
	return result, err
}

func (obs *ObservableConnection) Close() error {
	return obs.observeOperation(context.Background(), "close", nil, func(ctx context.Context) error {
		return obs.conn.Close()
	})
}
