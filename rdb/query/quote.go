package query

import (
	"regexp"
	"strings"
)

// Quoter 标识符引用规则
type Quoter struct {
	Open  string
	Close string
}

var (
	// ANSI 标准 SQL 双引号，postgres / sqlite 使用
	ANSI = Quoter{Open: `"`, Close: `"`}
	// Backtick mysql 反引号
	Backtick = Quoter{Open: "`", Close: "`"}
)

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// keywords mysql、postgres、sqlite 中不能直接作为标识符的保留字
var keywords = map[string]struct{}{}

func init() {
	for _, word := range strings.Fields(`
		all alter analyze and any as asc between both by case cast check collate column constraint
		create cross current_date current_time current_timestamp current_user database default
		delete desc distinct drop else end except exists false fetch for foreign from full grant
		group having in index inner insert intersect into is join key leading left like limit
		natural not null offset on or order outer primary references returning revoke right
		select set some table then to trailing true union unique update user using values when
		where window with`) {
		keywords[word] = struct{}{}
	}
}

func isKeyword(ident string) bool {
	_, ok := keywords[strings.ToLower(ident)]
	return ok
}

// Quote 普通标识符原样返回，保留字和其他标识符加引号并转义其中的结束符
// 以 . 分隔的普通标识符逐段处理，例如 public.order 输出为 public."order"
func (q Quoter) Quote(ident string) string {
	if !plainIdentifier.MatchString(ident) {
		return q.wrap(ident)
	}
	if !strings.Contains(ident, ".") {
		if isKeyword(ident) {
			return q.wrap(ident)
		}
		return ident
	}
	parts := strings.Split(ident, ".")
	for i, part := range parts {
		if isKeyword(part) {
			parts[i] = q.wrap(part)
		}
	}
	return strings.Join(parts, ".")
}

func (q Quoter) wrap(ident string) string {
	l, r := q.Open, q.Close
	if l == "" {
		l, r = ANSI.Open, ANSI.Close
	}
	if r == "" {
		r = l
	}
	return l + strings.ReplaceAll(ident, r, r+r) + r
}
