package testinfra

import (
	"context"
	"mangaapi/persistence"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TestDatabase is a throw-away MySQL schema owned by a single test case.
type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

const defaultMysqlService = "root:root@(127.0.0.1:3306)"

// StartMysqlTestDatabase creates a uniquely named schema on TEST_MYSQL_SERVICE (user:pass@(host:port)) and connects
// to it. The process is aborted when MySQL is unreachable.
func StartMysqlTestDatabase(baseName string) *TestDatabase {
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc == "" {
		mysqlSvc = defaultMysqlService
	}
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	dbConfig := &persistence.DatabaseConfig{
		DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		logrus.Fatalf("failed to prepare test database %s: %v", databaseName, err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		ds.Stop()
		logrus.Fatalf("failed to connect test database %s: %v", databaseName, err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

// StopMysqlTestDatabase drops the schema and closes the connection, it tolerates nil.
func StopMysqlTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if db := testDatabase.DS.GormDB(context.Background()); db != nil {
		if err := db.Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			logrus.Warnf("failed to drop test database %s: %v", testDatabase.TestDatabaseName, err)
		} else {
			logrus.Debugf("test database %s dropped", testDatabase.TestDatabaseName)
		}
	}
	testDatabase.DS.Stop()
}
