package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"burnmail/backend/internal/storage"
)

// Options 数据库连接参数
type Options struct {
	Type            string // postgres / mysql / sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *zap.Logger
}

// Store 基于 GORM 的关系型存储实现（支持 PostgreSQL、MySQL 与 SQLite）
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open 根据数据库类型创建存储实例
func Open(opts Options) (*Store, error) {
	dialector, err := newDialector(opts.Type, opts.DSN)
	if err != nil {
		return nil, err
	}
	store, err := NewStoreWithDialector(dialector, opts.Logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if isSQLite(opts.Type) {
		// SQLite 只允许单写连接，事务内的操作都走 tx
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return store, nil
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	config := &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db}, nil
}

// newDialector 按数据库类型构造 dialector
func newDialector(dbType, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	switch strings.ToLower(dbType) {
	case "postgres", "postgresql":
		connConfig, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
		}
		return postgres.New(postgres.Config{Conn: stdlib.OpenDB(*connConfig)}), nil

	case "mysql":
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql DSN: %w", err)
		}
		// 时间字段统一按 UTC 解析；UPDATE 返回匹配行数而非变更行数
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.ClientFoundRows = true
		return mysql.Open(cfg.FormatDSN()), nil

	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil

	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

func isSQLite(dbType string) bool {
	t := strings.ToLower(dbType)
	return t == "sqlite" || t == "sqlite3"
}

// Migrate 自动迁移数据库表结构，可重复执行
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&userRecord{},
		&sessionRecord{},
		&mailboxRecord{},
		&emailRecord{},
	)
}

// Ping 检查数据库连通性
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
