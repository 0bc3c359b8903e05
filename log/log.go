package log

import (
	"sync/atomic"

	"github.com/hatlonely/orm/log/logger"
	"github.com/hatlonely/orm/ref"
	"github.com/pkg/errors"
)

var defaultLogger atomic.Pointer[loggerHolder]

type loggerHolder struct {
	logger logger.Logger
}

func init() {
	// 默认向终端输出 text 格式日志
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger.Store(&loggerHolder{logger: l})
}

func Default() logger.Logger {
	return defaultLogger.Load().logger
}

// SetDefault 替换默认日志器，nil 被忽略
func SetDefault(l logger.Logger) {
	if l != nil {
		defaultLogger.Store(&loggerHolder{logger: l})
	}
}

// NewLoggerWithOptions 通过 ref 创建日志器，options 为 nil 时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}

	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%T does not implement Logger", obj)
	}
	return l, nil
}
