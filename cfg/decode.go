package cfg

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format 配置文件格式
type Format string

const (
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatTOML       Format = "toml"
	FormatINI        Format = "ini"
	FormatProperties Format = "properties"
)

// FormatOf 根据文件扩展名判断格式
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".ini":
		return FormatINI, nil
	case ".properties", ".env":
		return FormatProperties, nil
	}
	return "", errors.Errorf("unsupported config file extension %q", filepath.Ext(path))
}

// Decode 解码配置数据
func Decode(data []byte, format Format) (*Node, error) {
	var result any
	var err error

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &result)
	case FormatYAML:
		err = yaml.Unmarshal(data, &result)
	case FormatTOML:
		var m map[string]any
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&m)
		result = m
	case FormatINI, FormatProperties:
		result, err = decodeINI(data)
	default:
		return nil, errors.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}

	return NewNode(normalize(result)), nil
}

// decodeINI 默认 section 的键放在顶层，其他 section 作为嵌套的 map
// section 名中的 . 表示多级嵌套，例如 [database.pool]
func decodeINI(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, err
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				sub, ok := target[part].(map[string]any)
				if !ok {
					sub = map[string]any{}
					target[part] = sub
				}
				target = sub
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return result, nil
}

// normalize 统一各解码器的容器类型为 map[string]any 和 []any
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[toKey(k)] = normalize(item)
		}
		return m
	case []map[string]any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = normalize(item)
		}
		return items
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	}
	return v
}

func toKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, _ := json.Marshal(k)
	return strings.Trim(string(b), `"`)
}
