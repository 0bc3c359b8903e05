package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hatlonely/orm/log/writer"
	"github.com/hatlonely/orm/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*SLog](NewSLogWithOptions)
}

// SLogOptions 日志初始化选项
type SLogOptions struct {
	// 日志级别：debug, info, warn, error
	Level string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn warning error"`

	// 输出格式：text, json
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`

	// Output 输出目标，为空时输出到 stdout
	Output *ref.TypeOptions `cfg:"output"`

	// Writer 直接指定输出，优先于 Output
	Writer io.Writer `cfg:"-"`

	TimeFormat string `cfg:"timeFormat"`

	// 是否显示调用者信息
	AddSource bool `cfg:"addSource"`

	// 附加到每条日志的字段
	Fields map[string]any `cfg:"fields"`

	// RedactKeys 这些字段的值输出为 ***，例如语句的绑定参数 args
	RedactKeys []string `cfg:"redactKeys"`
}

type SLog struct {
	slogger *slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	levelName := options.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid log level")
	}

	w, err := newWriter(options)
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: options.AddSource,
	}
	handlerOpts.ReplaceAttr = replaceAttr(options)

	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	case "text", "":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, errors.Errorf("unsupported format: %s", options.Format)
	}

	slogger := slog.New(handler)
	if len(options.Fields) > 0 {
		args := make([]any, 0, len(options.Fields)*2)
		for k, v := range options.Fields {
			args = append(args, k, v)
		}
		slogger = slogger.With(args...)
	}

	return &SLog{slogger: slogger}, nil
}

// replaceAttr 处理自定义时间格式和需要脱敏的字段，都不需要时返回 nil
func replaceAttr(options *SLogOptions) func(groups []string, a slog.Attr) slog.Attr {
	timeFormat := options.TimeFormat
	if timeFormat == time.RFC3339 {
		timeFormat = ""
	}
	redact := make(map[string]struct{}, len(options.RedactKeys))
	for _, key := range options.RedactKeys {
		redact[key] = struct{}{}
	}
	if timeFormat == "" && len(redact) == 0 {
		return nil
	}

	return func(groups []string, a slog.Attr) slog.Attr {
		if timeFormat != "" && a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.String(a.Key, a.Value.Time().Format(timeFormat))
		}
		if _, ok := redact[a.Key]; ok {
			return slog.String(a.Key, "***")
		}
		return a
	}
}

func newWriter(options *SLogOptions) (io.Writer, error) {
	if options.Writer != nil {
		return options.Writer, nil
	}
	if options.Output == nil || options.Output.Type == "" {
		return writer.NewConsoleWriterWithOptions(nil)
	}

	obj, err := ref.New(options.Output.Namespace, options.Output.Type, options.Output.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create writer")
	}
	w, ok := obj.(writer.Writer)
	if !ok {
		return nil, errors.Errorf("%T does not implement Writer", obj)
	}
	return w, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown level: %s", level)
	}
}

func (l *SLog) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *SLog) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *SLog) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *SLog) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name)}
}
