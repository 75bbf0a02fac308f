// Command admin runs operator tasks against the minimarket database:
// creating or recovering administrator accounts, checking dependencies and
// tailing catalog events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"minimarket/internal/config"
	"minimarket/pkg/logger"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usage = `usage: admin [flags] <command>

commands:
  create-admin     create an administrator (--username, --password)
  reset-password   set a new password and re-enable the account (--username, --password)
  check            verify configuration, database, redis and rabbitmq
  events           print catalog events from rabbitmq until interrupted

flags:
`

func main() {
	fs := pflag.NewFlagSet("admin", pflag.ExitOnError)
	username := fs.StringP("username", "u", "", "account username")
	password := fs.StringP("password", "p", "", "account password (defaults to $ADMIN_PASSWORD)")
	email := fs.String("email", "", "account email")
	envFile := fs.String("env-file", ".env", "environment file to load")
	fs.String("database-url", "", "database DSN, overrides DATABASE_URL")
	fs.String("db-driver", "", "postgres or sqlite, overrides DB_DRIVER")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	config.LoadDotenv(*envFile)
	v := viper.New()
	bindOverride(v, fs, "DATABASE_URL", "database-url")
	bindOverride(v, fs, "DB_DRIVER", "db-driver")
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}

	log := logger.New("minimarket-admin", logger.LevelFor(os.Getenv("APP_ENV")))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := fs.Arg(0); cmd {
	case "create-admin":
		err = withAuthService(v, log, func(svc accountService) error {
			return createAdmin(ctx, svc, *username, *password, *email, os.Stdout)
		})
	case "reset-password":
		err = withAuthService(v, log, func(svc accountService) error {
			return resetPassword(ctx, svc, *username, *password, os.Stdout)
		})
	case "check":
		err = check(ctx, v, log, os.Stdout)
	case "events":
		err = tailEvents(ctx, v, log, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", "command", fs.Arg(0), "error", err)
		os.Exit(1)
	}
}

func bindOverride(v *viper.Viper, fs *pflag.FlagSet, key, flag string) {
	if f := fs.Lookup(flag); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}
