package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

type MySQLOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLDSN builds a driver DSN. ClientFoundRows makes UPDATE report matched
// rather than changed rows, so rewriting a part with identical values is
// not mistaken for a missing row.
func MySQLDSN(opts MySQLOptions) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.DBName
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(ctx context.Context, opts MySQLOptions) (*sql.DB, error) {
	db, err := sql.Open("mysql", MySQLDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return newSQLAdapter(db, dialect{name: "mysql", isUniqueViolation: isMySQLDuplicate, lockingRead: " FOR UPDATE"})
}

func isMySQLDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
