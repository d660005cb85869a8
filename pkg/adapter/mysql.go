package adapter

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/ptosc"
)

// mysqlPassthrough runs statements on a single dedicated connection so session state
// (USE, SET) carries over between statements the way it does for a native adapter.
type mysqlPassthrough struct {
	db   *sql.DB
	conn *sql.Conn
}

// MySQLConfig builds the go-sql-driver configuration for details.
func MySQLConfig(details *ptosc.ConnectionDetails) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = details.Username()
	cfg.Passwd = details.Password()
	cfg.DBName = details.Database()
	cfg.ParseTime = true
	cfg.InterpolateParams = true

	if details.UsesSocket() {
		cfg.Net = "unix"
		cfg.Addr = details.Socket()
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(details.Host(), strconv.Itoa(details.Port()))
	}

	return cfg
}

// OpenMySQL connects to MySQL with go-sql-driver/mysql.
func OpenMySQL(ctx context.Context, details *ptosc.ConnectionDetails) (DriverPassthrough, error) {
	connector, err := mysql.NewConnector(MySQLConfig(details))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mysql connector")
	}

	db := sql.OpenDB(connector)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping mysql")
	}

	return &mysqlPassthrough{db: db, conn: conn}, nil
}

func (m *mysqlPassthrough) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	res, err := m.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, err
	}

	// go-sql-driver always knows both values, the errors are unreachable.
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()

	return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}

func (m *mysqlPassthrough) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		res.Rows = append(res.Rows, values)
	}

	return res, rows.Err()
}

func (m *mysqlPassthrough) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := m.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}

	return version, nil
}

func (m *mysqlPassthrough) Close() error {
	connErr := m.conn.Close()
	if err := m.db.Close(); err != nil {
		return err
	}

	return connErr
}
