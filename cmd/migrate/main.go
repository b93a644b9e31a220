package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/config"
	"burnmail/backend/internal/logger"
	"burnmail/backend/internal/service"
	sqlstore "burnmail/backend/internal/storage/sql"
)

// 部署时执行的一次性任务：建表、初始化管理员、手动清理。
// 所有命令都可以重复执行。
func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "burnmail deploy-time maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Usage:   "database type: postgres, mysql or sqlite",
				EnvVars: []string{"TEMPMAIL_DATABASE_TYPE"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "database connection string",
				EnvVars: []string{"TEMPMAIL_DATABASE_DSN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Create or upgrade tables",
				Action: runSchema,
			},
			{
				Name:  "admin",
				Usage: "Create the bootstrap admin account if it does not exist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Usage:   "admin username",
						EnvVars: []string{"TEMPMAIL_AUTH_ADMIN_USERNAME", "ADMIN_USERNAME"},
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "admin password",
						EnvVars: []string{"TEMPMAIL_AUTH_ADMIN_PASSWORD", "ADMIN_PASSWORD"},
					},
				},
				Action: runAdmin,
			},
			{
				Name:   "sweep",
				Usage:  "Run one retention sweep and print the counts",
				Action: runSweep,
			},
		},
		// 不带子命令时依次执行 schema 与 admin
		Action: func(c *cli.Context) error {
			if err := runSchema(c); err != nil {
				return err
			}
			return runAdmin(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg   *config.Config
	log   *zap.Logger
	store *sqlstore.Store
}

func open(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if t := c.String("type"); t != "" {
		cfg.Database.Type = t
	}
	if dsn := c.String("dsn"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if cfg.Database.Type == "" {
		return nil, errors.New("database type is required (--type or TEMPMAIL_DATABASE_TYPE)")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := sqlstore.Open(sqlstore.Options{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          log.Named("gorm"),
	})
	if err != nil {
		return nil, err
	}
	if err := store.Ping(c.Context); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func runSchema(c *cli.Context) error {
	e, err := open(c)
	if err != nil {
		return err
	}
	defer e.store.Close()

	if err := e.store.Migrate(c.Context); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Printf("✓ %s 数据表已就绪\n", e.cfg.Database.Type)
	return nil
}

func runAdmin(c *cli.Context) error {
	e, err := open(c)
	if err != nil {
		return err
	}
	defer e.store.Close()

	username, password := e.cfg.Auth.AdminUsername, e.cfg.Auth.AdminPassword
	if v := c.String("username"); v != "" {
		username = v
	}
	if v := c.String("password"); v != "" {
		password = v
	}
	if username == "" || password == "" {
		fmt.Println("未配置管理员账户，跳过")
		return nil
	}

	authService := auth.NewService(e.store, e.store, auth.Options{
		AllowRegistration: e.cfg.Auth.AllowRegistration,
		SessionTTL:        e.cfg.Auth.SessionTTL(),
	}, e.log)
	if err := service.EnsureAdmin(c.Context, e.store, authService, username, password, e.log); err != nil {
		return err
	}
	fmt.Printf("✓ 管理员账户 %s 已就绪\n", username)
	return nil
}

func runSweep(c *cli.Context) error {
	e, err := open(c)
	if err != nil {
		return err
	}
	defer e.store.Close()

	result := service.NewSweeper(e.store, e.cfg.Mailbox.Retention(), nil, e.log).Run(c.Context)
	fmt.Printf("sessions=%d emails=%d mailboxes=%d\n", result.Sessions, result.Emails, result.Mailboxes)
	return errors.Join(result.Errors...)
}
