package rdb

import (
	"fmt"
	"strings"
)

// Code 映射错误类型
type Code int

const (
	CodeNotAnEntity Code = iota + 1
	CodeUnsupportedFieldType
	CodeMultiplePrimaryKeys
	CodeMissingPrimaryKey
	CodeUnknownField
	CodeNullRequiredField
	CodeNoDefaultConstructor
	CodeHydrationFailure
	CodeExecutionFailure
	CodeSessionNotOpen
)

var codeNames = map[Code]string{
	CodeNotAnEntity:          "not an entity",
	CodeUnsupportedFieldType: "unsupported field type",
	CodeMultiplePrimaryKeys:  "multiple primary keys",
	CodeMissingPrimaryKey:    "missing primary key",
	CodeUnknownField:         "unknown field",
	CodeNullRequiredField:    "null value for required field",
	CodeNoDefaultConstructor: "no default constructor",
	CodeHydrationFailure:     "hydration failure",
	CodeExecutionFailure:     "execution failure",
	CodeSessionNotOpen:       "session not open",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error 映射引擎返回给调用方的错误
// errors.Is 按 Code 匹配哨兵错误，errors.As 可获取出错的实体和字段
type Error struct {
	Code Code

	// Entity 实体类型名或表名
	Entity string

	// Field 出错的字段名或列名
	Field string

	// Err 底层原因，可能为 nil
	Err error
}

var (
	ErrNotAnEntity          = &Error{Code: CodeNotAnEntity}
	ErrUnsupportedFieldType = &Error{Code: CodeUnsupportedFieldType}
	ErrMultiplePrimaryKeys  = &Error{Code: CodeMultiplePrimaryKeys}
	ErrMissingPrimaryKey    = &Error{Code: CodeMissingPrimaryKey}
	ErrUnknownField         = &Error{Code: CodeUnknownField}
	ErrNullRequiredField    = &Error{Code: CodeNullRequiredField}
	ErrNoDefaultConstructor = &Error{Code: CodeNoDefaultConstructor}
	ErrHydrationFailure     = &Error{Code: CodeHydrationFailure}
	ErrExecutionFailure     = &Error{Code: CodeExecutionFailure}
	ErrSessionNotOpen       = &Error{Code: CodeSessionNotOpen}
)

// NewError 创建映射错误
func NewError(code Code, entity string, field string, cause error) *Error {
	return &Error{Code: code, Entity: entity, Field: field, Err: cause}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("rdb: ")
	sb.WriteString(e.Code.String())
	if e.Entity != "" {
		sb.WriteString(" entity=")
		sb.WriteString(e.Entity)
	}
	if e.Field != "" {
		sb.WriteString(" field=")
		sb.WriteString(e.Field)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
