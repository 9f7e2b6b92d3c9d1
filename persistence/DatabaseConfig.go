package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const defaultDriverArgs = "root:root@(127.0.0.1:3306)/mangaapi?charset=utf8mb4&parseTime=True&loc=Local"

type DatabaseConfig struct {
	DriverType string
	DriverArgs string

	// MaxOpenConns caps the pool, zero means unlimited.
	MaxOpenConns int
}

// ParseDatabaseConfigFromEnv DATABASE_DRIVER=mysql DATABASE_URL=user:pass@(host:port)/db?charset=utf8mb4&parseTime=True&loc=Local
// DATABASE_MAX_OPEN_CONNS=20
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := os.Getenv("DATABASE_DRIVER")
	if driverType == "" {
		driverType = "mysql"
	}
	if driverType != "mysql" {
		return nil, fmt.Errorf("unsupported database driver '%s'", driverType)
	}

	driverArgs := os.Getenv("DATABASE_URL")
	if driverArgs == "" {
		driverArgs = defaultDriverArgs
	}
	if _, err := mysql.ParseDSN(driverArgs); err != nil {
		return nil, err
	}
	config := &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}
	if v := os.Getenv("DATABASE_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid DATABASE_MAX_OPEN_CONNS '%s'", v)
		}
		config.MaxOpenConns = n
	}
	return config, nil
}

// PrepareMysqlDatabase creates the database named in the dsn if it does not exist yet.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in '" + driverArgs + "'")
	}
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4")
	return err
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
