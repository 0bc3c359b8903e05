package builder

import (
	"strings"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/query"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type User struct {
	ID       int32  `rdb:"id,primary"`
	Username string `rdb:"username,unique"`
	Password string `rdb:"password,required"`
}

func (User) TableName() string { return "users" }

type Profile struct {
	Nickname null.String `rdb:"nickname,required"`
	Email    null.String `rdb:"email,unique"`
	Phone    *string     `rdb:"phone,unique"`
	Score    float64     `rdb:"score"`
	Active   bool        `rdb:"active"`
}

func (Profile) TableName() string { return "user profile" }

type Counter struct {
	ID int32 `rdb:"id,pk"`
}

func (Counter) TableName() string { return "counters" }

type Reversed struct {
	Password string `rdb:"password"`
	Username string `rdb:"username"`
	ID       int32  `rdb:"id,primary"`
}

func (Reversed) TableName() string { return "users" }

type Booking struct {
	ID    int32  `rdb:"id,primary"`
	Order string `rdb:"order,unique"`
	Group string `rdb:"group"`
}

func (Booking) TableName() string { return "user" }

func mustDescribe(v any) *entity.Descriptor {
	d, err := entity.NewRegistry().Describe(v)
	So(err, ShouldBeNil)
	return d
}

func TestInsert(t *testing.T) {
	Convey("测试 Insert", t, func() {
		b := New()

		Convey("跳过主键列并绑定参数", func() {
			d := mustDescribe(&User{})
			stmt, err := b.Insert(d, &User{Username: "bob", Password: "pw"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "insert into users (username, password) values (?, ?)")
			So(stmt.Args, ShouldResemble, []any{"bob", "pw"})
			So(stmt.KeyColumn, ShouldEqual, "id")
			So(stmt.Inline(), ShouldEqual, "insert into users (username, password) values ('bob', 'pw')")
		})

		Convey("参数中的引号不会破坏语句", func() {
			d := mustDescribe(&User{})
			stmt, err := b.Insert(d, &User{Username: "o'brien", Password: "x'); drop table users; --"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "insert into users (username, password) values (?, ?)")
			So(stmt.Args[1], ShouldEqual, "x'); drop table users; --")
			So(stmt.Inline(), ShouldEqual, "insert into users (username, password) values ('o''brien', 'x''); drop table users; --')")
		})

		Convey("required 列为 NULL", func() {
			d := mustDescribe(&Profile{})
			stmt, err := b.Insert(d, &Profile{})
			So(stmt, ShouldBeNil)
			So(errors.Is(err, rdb.ErrNullRequiredField), ShouldBeTrue)
			var e *rdb.Error
			So(errors.As(err, &e), ShouldBeTrue)
			So(e.Field, ShouldEqual, "Nickname")
		})

		Convey("可为 NULL 的列绑定 nil，表名需要引用", func() {
			d := mustDescribe(&Profile{})
			stmt, err := b.Insert(d, &Profile{Nickname: null.StringFrom("b"), Active: true})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `insert into "user profile" (nickname, email, phone, score, active) values (?, ?, ?, ?, ?)`)
			So(stmt.Args, ShouldResemble, []any{"b", nil, nil, float64(0), true})
			So(stmt.KeyColumn, ShouldEqual, "")
			So(stmt.Inline(), ShouldEqual, `insert into "user profile" (nickname, email, phone, score, active) values ('b', null, null, 0, true)`)
		})

		Convey("只有主键时使用 default values", func() {
			d := mustDescribe(&Counter{})
			stmt, err := b.Insert(d, &Counter{})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "insert into counters default values")
			So(stmt.KeyColumn, ShouldEqual, "id")
		})

		Convey("对象类型不匹配", func() {
			d := mustDescribe(&User{})
			_, err := b.Insert(d, User{})
			So(errors.Is(err, rdb.ErrNotAnEntity), ShouldBeTrue)
			_, err = b.Insert(d, &Counter{})
			So(errors.Is(err, rdb.ErrNotAnEntity), ShouldBeTrue)
		})

		Convey("mysql 反引号", func() {
			d := mustDescribe(&Profile{})
			stmt, err := New(WithQuoter(query.Backtick)).Insert(d, &Profile{Nickname: null.StringFrom("b")})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldStartWith, "insert into `user profile` (")
		})
	})
}

func TestUpdate(t *testing.T) {
	Convey("测试 Update", t, func() {
		b := New()

		Convey("更新所有列，条件为主键", func() {
			d := mustDescribe(&User{})
			stmt, err := b.Update(d, &User{ID: 7, Username: "bob", Password: "pw"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "update users set id = ?, username = ?, password = ? where id = ?")
			So(stmt.Args, ShouldResemble, []any{int32(7), "bob", "pw", int32(7)})
			So(stmt.Inline(), ShouldEqual, "update users set id = 7, username = 'bob', password = 'pw' where id = 7")
		})

		Convey("where 子句与列声明顺序无关", func() {
			d := mustDescribe(&Reversed{})
			stmt, err := b.Update(d, &Reversed{ID: 7, Username: "bob", Password: "pw"})
			So(err, ShouldBeNil)
			parts := strings.SplitN(stmt.Inline(), " where ", 2)
			So(parts, ShouldHaveLength, 2)
			So(parts[1], ShouldEqual, "id = 7")
		})

		Convey("没有主键", func() {
			d := mustDescribe(&Profile{})
			_, err := b.Update(d, &Profile{Nickname: null.StringFrom("b")})
			So(errors.Is(err, rdb.ErrMissingPrimaryKey), ShouldBeTrue)
		})

		Convey("required 列为 NULL", func() {
			type Account struct {
				ID   int32       `rdb:"id,primary"`
				Name null.String `rdb:"name,required"`
			}
			d, err := entity.Define[Account]("accounts",
				entity.Int32("ID", func(a *Account) *int32 { return &a.ID }).Column("id").PrimaryKey(),
				entity.NullString("Name", func(a *Account) *null.String { return &a.Name }).Column("name").NotNull(),
			)
			So(err, ShouldBeNil)
			_, err = b.Update(d, &Account{ID: 1})
			So(errors.Is(err, rdb.ErrNullRequiredField), ShouldBeTrue)
		})

		Convey("主键为 NULL", func() {
			type Account struct {
				ID   null.Int32
				Name string
			}
			d, err := entity.Define[Account]("accounts",
				entity.NullInt32("ID", func(a *Account) *null.Int32 { return &a.ID }).Column("id").PrimaryKey(),
				entity.String("Name", func(a *Account) *string { return &a.Name }).Column("name"),
			)
			So(err, ShouldBeNil)
			_, err = b.Update(d, &Account{Name: "x"})
			So(errors.Is(err, rdb.ErrMissingPrimaryKey), ShouldBeTrue)
			_, err = b.Delete(d, &Account{Name: "x"})
			So(errors.Is(err, rdb.ErrMissingPrimaryKey), ShouldBeTrue)
		})
	})
}

func TestDelete(t *testing.T) {
	Convey("测试 Delete", t, func() {
		b := New()

		Convey("按主键删除", func() {
			d := mustDescribe(&User{})
			stmt, err := b.Delete(d, &User{ID: 3, Username: "bob"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "delete from users where id = ?")
			So(stmt.Args, ShouldResemble, []any{int32(3)})
		})

		Convey("没有主键", func() {
			d := mustDescribe(&Profile{})
			_, err := b.Delete(d, &Profile{})
			So(errors.Is(err, rdb.ErrMissingPrimaryKey), ShouldBeTrue)
		})
	})
}

func TestSelect(t *testing.T) {
	Convey("测试 Select 和 SelectAll", t, func() {
		b := New()
		d := mustDescribe(&User{})

		Convey("按字段名查找列", func() {
			stmt, err := b.Select(d, "Username", "bob")
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "select * from users where username = ?")
			So(stmt.Args, ShouldResemble, []any{"bob"})
		})

		Convey("条件值转换为列类型", func() {
			stmt, err := b.Select(d, "ID", 7)
			So(err, ShouldBeNil)
			So(stmt.Args, ShouldResemble, []any{int32(7)})
			So(stmt.Inline(), ShouldEqual, "select * from users where id = 7")
		})

		Convey("列名不能作为字段名使用", func() {
			_, err := b.Select(d, "username", "bob")
			So(errors.Is(err, rdb.ErrUnknownField), ShouldBeTrue)
		})

		Convey("未映射的字段", func() {
			_, err := b.Select(d, "Email", "x")
			So(errors.Is(err, rdb.ErrUnknownField), ShouldBeTrue)
		})

		Convey("条件值无法转换", func() {
			_, err := b.Select(d, "ID", "abc")
			So(err, ShouldNotBeNil)
		})

		Convey("SelectAll", func() {
			So(b.SelectAll(d).SQL, ShouldEqual, "select * from users")
			So(b.SelectAll(d).Args, ShouldBeEmpty)
		})
	})
}

func TestUnique(t *testing.T) {
	Convey("测试 Unique", t, func() {
		b := New()

		Convey("单个 unique 列", func() {
			d := mustDescribe(&User{})
			stmt, err := b.Unique(d, &User{Username: "bob"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "select * from users where username = ?")
			So(stmt.Args, ShouldResemble, []any{"bob"})
		})

		Convey("多个 unique 列以 and 连接，跳过 NULL", func() {
			d := mustDescribe(&Profile{})
			phone := "123"
			stmt, err := b.Unique(d, &Profile{Email: null.StringFrom("a@b.c"), Phone: &phone})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `select * from "user profile" where email = ? and phone = ?`)
			So(stmt.Args, ShouldResemble, []any{"a@b.c", "123"})

			stmt, err = b.Unique(d, &Profile{Phone: &phone})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `select * from "user profile" where phone = ?`)
		})

		Convey("所有 unique 列都为 NULL", func() {
			d := mustDescribe(&Profile{})
			stmt, err := b.Unique(d, &Profile{})
			So(err, ShouldBeNil)
			So(stmt, ShouldBeNil)
		})

		Convey("没有 unique 列", func() {
			d := mustDescribe(&Counter{})
			stmt, err := b.Unique(d, &Counter{ID: 1})
			So(err, ShouldBeNil)
			So(stmt, ShouldBeNil)
		})
	})
}

func TestKeywordIdentifiers(t *testing.T) {
	Convey("保留字作为表名和列名时加引号", t, func() {
		d := mustDescribe(&Booking{})
		booking := &Booking{ID: 3, Order: "A1", Group: "vip"}

		Convey("ANSI", func() {
			b := New()
			stmt, err := b.Insert(d, booking)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `insert into "user" ("order", "group") values (?, ?)`)

			stmt, err = b.Update(d, booking)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `update "user" set id = ?, "order" = ?, "group" = ? where id = ?`)

			stmt, err = b.Select(d, "Order", "A1")
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `select * from "user" where "order" = ?`)

			stmt, err = b.Unique(d, booking)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `select * from "user" where "order" = ?`)
		})

		Convey("Backtick", func() {
			b := New(WithQuoter(query.Backtick))
			stmt, err := b.Delete(d, booking)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "delete from `user` where id = ?")

			stmt, err = b.Insert(d, booking)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "insert into `user` (`order`, `group`) values (?, ?)")
		})
	})
}
