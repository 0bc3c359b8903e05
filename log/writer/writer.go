package writer

import (
	"io"
	"os"

	"github.com/hatlonely/orm/ref"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

func init() {
	ref.MustRegisterT[*ConsoleWriter](NewConsoleWriterWithOptions)
	ref.MustRegisterT[*FileWriter](NewFileWriterWithOptions)
}

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout" validate:"omitempty,oneof=stdout stderr"`
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
	target string
}

// NewConsoleWriterWithOptions 创建控制台输出器，未知的 target 输出到 stdout
func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options == nil {
		options = &ConsoleWriterOptions{Target: "stdout"}
	}

	if options.Target == "stderr" {
		return &ConsoleWriter{writer: os.Stderr, target: "stderr"}, nil
	}
	return &ConsoleWriter{writer: os.Stdout, target: "stdout"}, nil
}

func (c *ConsoleWriter) Target() string {
	return c.target
}

func (c *ConsoleWriter) Write(p []byte) (n int, err error) {
	return c.writer.Write(p)
}

// Close 控制台不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
