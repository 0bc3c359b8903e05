package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/database"
	"github.com/hatlonely/orm/rdb/entity"
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
	ID       int32       `rdb:"id,primary"`
	Nickname null.String `rdb:"nickname,required"`
	Email    null.String `rdb:"email,unique"`
}

func (Profile) TableName() string { return "profiles" }

type Note struct {
	Body string `rdb:"body"`
}

func (Note) TableName() string { return "notes" }

type Item struct {
	ID   int32  `rdb:",primary"`
	Name string `rdb:""`
}

func (Item) TableName() string { return "items" }

type Booking struct {
	ID    int32  `rdb:"id,primary"`
	Order string `rdb:"order,unique"`
}

func (Booking) TableName() string { return "bookings" }

// spyConnection 记录所有语句，返回预设的结果
type spyConnection struct {
	statements []*rdb.Statement
	rows       []rdb.Row
	result     *rdb.ExecResult
	err        error
}

func (c *spyConnection) Query(ctx context.Context, stmt *rdb.Statement) (rdb.Cursor, error) {
	c.statements = append(c.statements, stmt)
	if c.err != nil {
		return nil, c.err
	}
	return rdb.NewSliceCursor(c.rows...), nil
}

func (c *spyConnection) Exec(ctx context.Context, stmt *rdb.Statement) (*rdb.ExecResult, error) {
	c.statements = append(c.statements, stmt)
	if c.err != nil {
		return nil, c.err
	}
	if c.result == nil {
		return &rdb.ExecResult{RowsAffected: 1}, nil
	}
	return c.result, nil
}

func (c *spyConnection) Close() error {
	return errors.New("engine must not close the connection")
}

func TestCreate(t *testing.T) {
	Convey("测试 Create", t, func() {
		ctx := context.Background()
		conn := &spyConnection{}
		repo := New(conn, WithRegistry(entity.NewRegistry()))

		Convey("回填数据库生成的主键", func() {
			conn.result = &rdb.ExecResult{
				RowsAffected:  1,
				GeneratedKeys: rdb.NewSliceCursor(rdb.Row{"id": int64(7)}),
			}
			user := &User{Username: "bob", Password: "pw"}
			So(repo.Create(ctx, user), ShouldBeNil)
			So(user.ID, ShouldEqual, int32(7))

			So(conn.statements, ShouldHaveLength, 1)
			So(conn.statements[0].SQL, ShouldEqual, `insert into users (username, password) values (?, ?)`)
			So(conn.statements[0].Args, ShouldResemble, []any{"bob", "pw"})
			So(conn.statements[0].Inline(), ShouldEqual, `insert into users (username, password) values ('bob', 'pw')`)
		})

		Convey("只返回一列时按该列回填", func() {
			conn.result = &rdb.ExecResult{
				RowsAffected:  1,
				GeneratedKeys: rdb.NewSliceCursor(rdb.Row{"GENERATED_KEY": []byte("9")}),
			}
			user := &User{Username: "bob", Password: "pw"}
			So(repo.Create(ctx, user), ShouldBeNil)
			So(user.ID, ShouldEqual, int32(9))
		})

		Convey("没有影响行或没有生成主键时不回填", func() {
			conn.result = &rdb.ExecResult{
				RowsAffected:  0,
				GeneratedKeys: rdb.NewSliceCursor(rdb.Row{"id": int64(7)}),
			}
			user := &User{ID: 3, Username: "bob", Password: "pw"}
			So(repo.Create(ctx, user), ShouldBeNil)
			So(user.ID, ShouldEqual, int32(3))

			conn.result = &rdb.ExecResult{RowsAffected: 1}
			So(repo.Create(ctx, user), ShouldBeNil)
			So(user.ID, ShouldEqual, int32(3))
		})

		Convey("主键无法转换时报 HydrationFailure 且主键不变", func() {
			conn.result = &rdb.ExecResult{
				RowsAffected:  1,
				GeneratedKeys: rdb.NewSliceCursor(rdb.Row{"id": "not-a-number"}),
			}
			user := &User{ID: 3, Username: "bob", Password: "pw"}
			err := repo.Create(ctx, user)
			So(errors.Is(err, rdb.ErrHydrationFailure), ShouldBeTrue)
			So(user.ID, ShouldEqual, int32(3))
		})

		Convey("必填字段为空时不访问数据库", func() {
			err := repo.Create(ctx, &Profile{Email: null.StringFrom("a@b.c")})
			So(errors.Is(err, rdb.ErrNullRequiredField), ShouldBeTrue)

			var rerr *rdb.Error
			So(errors.As(err, &rerr), ShouldBeTrue)
			So(rerr.Field, ShouldEqual, "Nickname")
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("没有主键的实体", func() {
			So(repo.Create(ctx, &Note{Body: "hello"}), ShouldBeNil)
			So(conn.statements[0].SQL, ShouldEqual, `insert into notes (body) values (?)`)
			So(conn.statements[0].KeyColumn, ShouldBeEmpty)
		})

		Convey("连接错误包装为 ExecutionFailure", func() {
			cause := errors.New("connection refused")
			conn.err = cause
			err := repo.Create(ctx, &User{Username: "bob", Password: "pw"})
			So(errors.Is(err, rdb.ErrExecutionFailure), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("不是实体", func() {
			err := repo.Create(ctx, &struct{ A int32 }{})
			So(errors.Is(err, rdb.ErrNotAnEntity), ShouldBeTrue)
			So(conn.statements, ShouldBeEmpty)
		})
	})
}

func TestRead(t *testing.T) {
	Convey("测试 Read", t, func() {
		ctx := context.Background()
		conn := &spyConnection{}
		repo := New(conn, WithRegistry(entity.NewRegistry()))

		Convey("按字段查询并转换每一行", func() {
			conn.rows = []rdb.Row{
				{"id": int64(1), "username": "bob", "password": []byte("pw")},
				{"id": int64(2), "username": "bob", "password": "x"},
			}
			objs, err := repo.Read(ctx, User{}, "Username", "bob")
			So(err, ShouldBeNil)
			So(objs, ShouldHaveLength, 2)
			So(objs[0], ShouldResemble, &User{ID: 1, Username: "bob", Password: "pw"})
			So(conn.statements[0].Inline(), ShouldEqual, `select * from users where username = 'bob'`)

			users, err := Find[User](ctx, repo, "ID", "2")
			So(err, ShouldBeNil)
			So(users[1].Password, ShouldEqual, "x")
			So(conn.statements[1].Args, ShouldResemble, []any{int32(2)})
		})

		Convey("没有结果时返回空列表", func() {
			objs, err := repo.Read(ctx, &User{}, "Username", "nobody")
			So(err, ShouldBeNil)
			So(objs, ShouldNotBeNil)
			So(objs, ShouldBeEmpty)

			users, err := FindAll[User](ctx, repo)
			So(err, ShouldBeNil)
			So(users, ShouldBeEmpty)
			So(conn.statements[1].SQL, ShouldEqual, "select * from users")
		})

		Convey("未知字段不访问数据库", func() {
			_, err := repo.Read(ctx, User{}, "Nickname", "bob")
			So(errors.Is(err, rdb.ErrUnknownField), ShouldBeTrue)
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("任意一行转换失败整个调用失败", func() {
			conn.rows = []rdb.Row{
				{"id": int64(1), "username": "bob", "password": "pw"},
				{"id": int64(2), "username": "bob"},
			}
			objs, err := repo.Read(ctx, User{}, "Username", "bob")
			So(errors.Is(err, rdb.ErrHydrationFailure), ShouldBeTrue)
			So(objs, ShouldBeNil)
		})

		Convey("查询失败", func() {
			conn.err = errors.New("timeout")
			_, err := repo.ReadAll(ctx, User{})
			So(errors.Is(err, rdb.ErrExecutionFailure), ShouldBeTrue)
		})
	})
}

func TestUpdateDelete(t *testing.T) {
	Convey("测试 Update 和 Delete", t, func() {
		ctx := context.Background()
		conn := &spyConnection{}
		repo := New(conn, WithRegistry(entity.NewRegistry()))

		Convey("按主键更新所有列", func() {
			So(repo.Update(ctx, &User{ID: 7, Username: "bob", Password: "pw"}), ShouldBeNil)
			So(conn.statements[0].Inline(), ShouldEqual,
				`update users set id = 7, username = 'bob', password = 'pw' where id = 7`)
		})

		Convey("影响行数为 0 不是错误", func() {
			conn.result = &rdb.ExecResult{RowsAffected: 0}
			So(repo.Update(ctx, &User{ID: 7, Username: "bob", Password: "pw"}), ShouldBeNil)
		})

		Convey("必填字段为空时不访问数据库", func() {
			err := repo.Update(ctx, &Profile{ID: 1})
			So(errors.Is(err, rdb.ErrNullRequiredField), ShouldBeTrue)
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("按主键删除", func() {
			So(repo.Delete(ctx, &User{ID: 7}), ShouldBeNil)
			So(conn.statements[0].Inline(), ShouldEqual, `delete from users where id = 7`)
		})

		Convey("没有主键的实体不能更新和删除", func() {
			So(errors.Is(repo.Update(ctx, &Note{Body: "x"}), rdb.ErrMissingPrimaryKey), ShouldBeTrue)
			So(errors.Is(repo.Delete(ctx, &Note{Body: "x"}), rdb.ErrMissingPrimaryKey), ShouldBeTrue)
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("执行失败", func() {
			conn.err = errors.New("deadlock")
			So(errors.Is(repo.Delete(ctx, &User{ID: 7}), rdb.ErrExecutionFailure), ShouldBeTrue)
		})
	})
}

func TestIsUnique(t *testing.T) {
	Convey("测试 IsUnique", t, func() {
		ctx := context.Background()
		conn := &spyConnection{}
		repo := New(conn, WithRegistry(entity.NewRegistry()))

		Convey("没有 unique 列时返回 false 且不访问数据库", func() {
			unique, err := repo.IsUnique(ctx, &Note{Body: "x"})
			So(err, ShouldBeNil)
			So(unique, ShouldBeFalse)
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("unique 列都为空时返回 true 且不访问数据库", func() {
			unique, err := repo.IsUnique(ctx, &Profile{ID: 1})
			So(err, ShouldBeNil)
			So(unique, ShouldBeTrue)
			So(conn.statements, ShouldBeEmpty)
		})

		Convey("已存在相同值", func() {
			conn.rows = []rdb.Row{{"id": int64(1)}}
			unique, err := repo.IsUnique(ctx, &User{Username: "bob"})
			So(err, ShouldBeNil)
			So(unique, ShouldBeFalse)
			So(conn.statements[0].Inline(), ShouldEqual, `select * from users where username = 'bob'`)
		})

		Convey("不存在相同值", func() {
			unique, err := repo.IsUnique(ctx, &Profile{Email: null.StringFrom("a@b.c")})
			So(err, ShouldBeNil)
			So(unique, ShouldBeTrue)
		})

		Convey("参数不是指针", func() {
			_, err := repo.IsUnique(ctx, User{})
			So(errors.Is(err, rdb.ErrNotAnEntity), ShouldBeTrue)
		})
	})
}

func TestSQLiteRoundTrip(t *testing.T) {
	Convey("测试 sqlite 完整流程", t, func() {
		ctx := context.Background()
		p, err := database.NewSQLProviderWithOptions(&database.SQLProviderOptions{
			Driver:   "sqlite3",
			Database: filepath.Join(t.TempDir(), "repository.db"),
		})
		So(err, ShouldBeNil)
		defer p.Close()

		_, err = p.DB().Exec(`create table users (id integer primary key autoincrement, username text unique, password text not null)`)
		So(err, ShouldBeNil)

		d, err := entity.DescribeT[User]()
		So(err, ShouldBeNil)
		conn, err := p.Acquire(ctx, d)
		So(err, ShouldBeNil)
		defer conn.Close()

		repo := New(conn)

		bob := &User{Username: "bob", Password: "pw"}
		So(repo.Create(ctx, bob), ShouldBeNil)
		So(bob.ID, ShouldEqual, int32(1))
		So(repo.Create(ctx, &User{Username: "alice", Password: "secret"}), ShouldBeNil)

		all, err := FindAll[User](ctx, repo)
		So(err, ShouldBeNil)
		So(all, ShouldHaveLength, 2)

		found, err := Find[User](ctx, repo, "Username", "alice")
		So(err, ShouldBeNil)
		So(found, ShouldHaveLength, 1)
		So(found[0], ShouldResemble, &User{ID: 2, Username: "alice", Password: "secret"})

		unique, err := repo.IsUnique(ctx, &User{Username: "bob"})
		So(err, ShouldBeNil)
		So(unique, ShouldBeFalse)
		unique, err = repo.IsUnique(ctx, &User{Username: "carol"})
		So(err, ShouldBeNil)
		So(unique, ShouldBeTrue)

		bob.Password = "changed"
		So(repo.Update(ctx, bob), ShouldBeNil)
		So(repo.Delete(ctx, &User{ID: 2}), ShouldBeNil)

		all, err = FindAll[User](ctx, repo)
		So(err, ShouldBeNil)
		So(all, ShouldHaveLength, 1)
		So(all[0].Password, ShouldEqual, "changed")

		err = repo.Create(ctx, &User{Username: "bob", Password: "again"})
		So(errors.Is(err, rdb.ErrExecutionFailure), ShouldBeTrue)
	})
}

func TestSQLiteDefaultColumnNames(t *testing.T) {
	Convey("列名默认为字段名时读取小写列", t, func() {
		ctx := context.Background()
		p, err := database.NewSQLProviderWithOptions(&database.SQLProviderOptions{
			Driver:   "sqlite3",
			Database: filepath.Join(t.TempDir(), "items.db"),
		})
		So(err, ShouldBeNil)
		defer p.Close()

		_, err = p.DB().Exec(`create table items (id integer primary key autoincrement, name text)`)
		So(err, ShouldBeNil)

		conn, err := p.Acquire(ctx, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		repo := New(conn, WithRegistry(entity.NewRegistry()))
		item := &Item{Name: "pen"}
		So(repo.Create(ctx, item), ShouldBeNil)
		So(item.ID, ShouldEqual, int32(1))

		items, err := FindAll[Item](ctx, repo)
		So(err, ShouldBeNil)
		So(items, ShouldResemble, []*Item{{ID: 1, Name: "pen"}})

		items, err = Find[Item](ctx, repo, "Name", "pen")
		So(err, ShouldBeNil)
		So(items, ShouldHaveLength, 1)
	})
}

func TestSQLiteKeywordColumns(t *testing.T) {
	Convey("列名为保留字时读写 sqlite", t, func() {
		ctx := context.Background()
		p, err := database.NewSQLProviderWithOptions(&database.SQLProviderOptions{
			Driver:   "sqlite3",
			Database: filepath.Join(t.TempDir(), "bookings.db"),
		})
		So(err, ShouldBeNil)
		defer p.Close()

		_, err = p.DB().Exec(`create table bookings (id integer primary key autoincrement, "order" text unique)`)
		So(err, ShouldBeNil)

		conn, err := p.Acquire(ctx, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		repo := New(conn, WithRegistry(entity.NewRegistry()))
		booking := &Booking{Order: "A1"}
		So(repo.Create(ctx, booking), ShouldBeNil)
		So(booking.ID, ShouldEqual, int32(1))

		bookings, err := Find[Booking](ctx, repo, "Order", "A1")
		So(err, ShouldBeNil)
		So(bookings, ShouldResemble, []*Booking{{ID: 1, Order: "A1"}})

		ok, err := repo.IsUnique(ctx, &Booking{Order: "A1"})
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		booking.Order = "B2"
		So(repo.Update(ctx, booking), ShouldBeNil)
		bookings, err = FindAll[Booking](ctx, repo)
		So(err, ShouldBeNil)
		So(bookings, ShouldResemble, []*Booking{{ID: 1, Order: "B2"}})
	})
}
