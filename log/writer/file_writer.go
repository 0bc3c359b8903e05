package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hatlonely/orm/cfg"
	"github.com/pkg/errors"
)

// FileWriterOptions 文件输出配置
type FileWriterOptions struct {
	Path string `cfg:"path" validate:"required"`

	// MaxSize 单个文件的最大字节数，超过后轮转，0 表示不轮转
	MaxSize int64 `cfg:"maxSize" validate:"gte=0"`

	// MaxBackups 保留的历史文件数，历史文件命名为 path.1, path.2, ...，0 表示轮转时直接丢弃
	MaxBackups int `cfg:"maxBackups" validate:"gte=0"`
}

// FileWriter 追加写入的文件输出器，按大小轮转
type FileWriter struct {
	options FileWriterOptions
	file    *os.File
	size    int64
	mu      sync.Mutex
}

func NewFileWriterWithOptions(options *FileWriterOptions) (*FileWriter, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("file path is required")
	}
	if err := cfg.Validate(options); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	dir := filepath.Dir(options.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}

	f := &FileWriter{options: *options}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileWriter) open() error {
	file, err := os.OpenFile(f.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", f.options.Path)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "failed to stat file %s", f.options.Path)
	}
	f.file = file
	f.size = info.Size()
	return nil
}

// rotate 关闭当前文件，path.n-1 依次改名为 path.n，超出 MaxBackups 的文件被删除
func (f *FileWriter) rotate() error {
	if err := f.file.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	f.file = nil

	path := f.options.Path
	if f.options.MaxBackups <= 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove %s", path)
		}
		return f.open()
	}

	backup := func(i int) string { return fmt.Sprintf("%s.%d", path, i) }
	if err := os.Remove(backup(f.options.MaxBackups)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", backup(f.options.MaxBackups))
	}
	for i := f.options.MaxBackups - 1; i >= 1; i-- {
		if err := os.Rename(backup(i), backup(i+1)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to rename %s", backup(i))
		}
	}
	if err := os.Rename(path, backup(1)); err != nil {
		return errors.Wrapf(err, "failed to rename %s", path)
	}
	return f.open()
}

func (f *FileWriter) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, errors.New("file is closed")
	}

	if f.options.MaxSize > 0 && f.size > 0 && f.size+int64(len(p)) > f.options.MaxSize {
		if err := f.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}
