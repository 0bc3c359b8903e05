// demo 演示在 sqlite3 上用会话读写 users 表
//
//	go run ./rdb/demo --db users.db init
//	go run ./rdb/demo --db users.db add bob secret
//	go run ./rdb/demo --db users.db get bob
//	go run ./rdb/demo --config demo.yaml list
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/hatlonely/orm/cfg"
	"github.com/hatlonely/orm/log"
	"github.com/hatlonely/orm/rdb/database"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type User struct {
	ID       int32  `rdb:"id,primary" json:"id"`
	Username string `rdb:"username,unique" json:"username"`
	Password string `rdb:"password,required" json:"-"`
}

func (User) TableName() string { return "users" }

const createUsers = `create table if not exists users (
	id integer primary key autoincrement,
	username text unique,
	password text not null
)`

type Options struct {
	Database database.SQLProviderOptions `cfg:"database"`
}

var (
	flagConfig string
	flagDB     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "demo",
	Short:         "Manage a users table through an rdb session",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (json/yaml/toml/ini)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "users.db", "sqlite3 database file, ignored when --config is set")
	rootCmd.AddCommand(initCmd, addCmd, getCmd, listCmd, removeCmd)
}

func newProvider() (*database.SQLProvider, error) {
	options := &Options{Database: database.SQLProviderOptions{Driver: "sqlite3", Database: flagDB}}
	if flagConfig != "" {
		options = &Options{}
		if err := cfg.Load(flagConfig, options); err != nil {
			return nil, errors.WithMessage(err, "load config failed")
		}
	}
	return database.NewSQLProviderWithOptions(&options.Database)
}

// withSession 打开会话执行 fn，结束后关闭会话和连接池
func withSession(fn func(ctx context.Context, s *session.Session) error) error {
	provider, err := newProvider()
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx := context.Background()
	s := session.New(provider, User{})
	if err := s.Open(ctx); err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json failed")
	}
	fmt.Println(string(out))
	return nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the users table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := newProvider()
		if err != nil {
			return err
		}
		defer provider.Close()

		if _, err := provider.DB().ExecContext(cmd.Context(), createUsers); err != nil {
			return errors.Wrap(err, "create table failed")
		}
		log.Default().Info("table created", "table", User{}.TableName(), "driver", provider.Driver())
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Insert a user when the username is not taken",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session.Session) error {
			user := &User{Username: args[0], Password: args[1]}
			unique, err := s.IsUnique(ctx, user)
			if err != nil {
				return err
			}
			if !unique {
				return errors.Errorf("username %q is taken", user.Username)
			}
			if err := s.Insert(ctx, user); err != nil {
				return err
			}
			return printJSON(user)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <username>",
	Short: "Find a user by username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session.Session) error {
			res, err := session.Find[User](ctx, s, "Username", args[0])
			if err != nil {
				return err
			}
			if res.First() == nil {
				return errors.Errorf("user %q not found", args[0])
			}
			return printJSON(res.First())
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session.Session) error {
			res, err := session.FindAll[User](ctx, s)
			if err != nil {
				return err
			}
			return printJSON(res.List())
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a user by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := entity.KindInt32.Coerce(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid id %q", args[0])
		}
		return withSession(func(ctx context.Context, s *session.Session) error {
			return s.Remove(ctx, &User{ID: id.(int32)})
		})
	},
}
