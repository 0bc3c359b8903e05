package cfg

import (
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Lookup 查找占位符的值
type Lookup func(key string) (string, bool)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)(:-([^}]*))?\}`)

// Expand 替换 s 中的 ${key} 和 ${key:-default} 占位符
// 依次在 lookups 中查找，都找不到时使用默认值，没有默认值时保留原样
func Expand(s string, lookups ...Lookup) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(sub[1]); ok {
				return v
			}
		}
		if sub[2] != "" {
			return sub[3]
		}
		return m
	})
}

// Env 从环境变量查找
func Env(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Map 从 map 查找
func Map(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// LoadProperties 读取 key=value 形式的属性文件，只读取默认 section
func LoadProperties(path string) (map[string]string, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load properties %s", path)
	}
	return file.Section(ini.DefaultSection).KeysHash(), nil
}
