package query

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTermQueryToSQL(t *testing.T) {
	Convey("测试 TermQuery ToSQL 方法", t, func() {
		Convey("字符串值", func() {
			q := &TermQuery{Field: "status", Value: "active"}
			sql, args, err := q.ToSQL(ANSI)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "status = ?")
			So(args, ShouldResemble, []any{"active"})
		})

		Convey("数字值", func() {
			q := &TermQuery{Field: "age", Value: int32(25)}
			sql, args, err := q.ToSQL(ANSI)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "age = ?")
			So(args, ShouldResemble, []any{int32(25)})
		})

		Convey("nil 值", func() {
			q := &TermQuery{Field: "deleted_at", Value: nil}
			_, args, err := q.ToSQL(ANSI)
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []any{nil})
		})

		Convey("需要引用的列名", func() {
			q := &TermQuery{Field: "user name", Value: "bob"}
			sql, _, err := q.ToSQL(Backtick)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "`user name` = ?")
		})

		Convey("空字段名", func() {
			q := &TermQuery{Value: "x"}
			_, _, err := q.ToSQL(ANSI)
			So(err, ShouldNotBeNil)
		})
	})
}
