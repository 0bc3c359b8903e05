package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/query"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGormProvider(t *testing.T) {
	Convey("测试 GormProvider", t, func() {
		ctx := context.Background()

		Convey("通过配置创建", func() {
			p, err := NewGormProviderWithOptions(&GormProviderOptions{
				Driver: "sqlite",
				DSN:    filepath.Join(t.TempDir(), "gorm.db"),
			})
			So(err, ShouldBeNil)
			defer p.Close()
			So(p.Quoter(), ShouldResemble, query.ANSI)
			So(p.Gorm(), ShouldNotBeNil)

			So(p.Gorm().Exec(`create table users (id integer primary key autoincrement, username text, password text)`).Error, ShouldBeNil)

			conn, err := p.Acquire(ctx, describe[User]())
			So(err, ShouldBeNil)
			defer conn.Close()

			res, err := conn.Exec(ctx, &rdb.Statement{
				SQL:       "insert into users (username, password) values (?, ?)",
				Args:      []any{"carol", "pw"},
				KeyColumn: "id",
			})
			So(err, ShouldBeNil)
			So(res.RowsAffected, ShouldEqual, 1)
			So(res.GeneratedKeys.Next(), ShouldBeTrue)

			var count int64
			So(p.Gorm().Table("users").Count(&count).Error, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})

		Convey("包装已有的 gorm.DB", func() {
			gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "existing.db")), &gorm.Config{})
			So(err, ShouldBeNil)
			p, err := NewGormProvider(gdb)
			So(err, ShouldBeNil)
			defer p.Close()
			So(p.sql.Driver(), ShouldEqual, "sqlite3")
		})

		Convey("参数错误", func() {
			_, err := NewGormProviderWithOptions(nil)
			So(err, ShouldNotBeNil)

			_, err = NewGormProviderWithOptions(&GormProviderOptions{Driver: "sqlite"})
			So(err, ShouldNotBeNil)

			_, err = NewGormProviderWithOptions(&GormProviderOptions{Driver: "oracle", DSN: "x"})
			So(err, ShouldNotBeNil)

			_, err = NewGormProvider(nil)
			So(err, ShouldNotBeNil)
		})
	})
}
