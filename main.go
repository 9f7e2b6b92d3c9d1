package main

import (
	"context"
	"io"
	"mangaapi/account"
	"mangaapi/audit"
	"mangaapi/bizerror"
	"mangaapi/catalog"
	"mangaapi/client/es"
	"mangaapi/client/s3"
	"mangaapi/dac"
	"mangaapi/enforce"
	"mangaapi/event"
	"mangaapi/infra/tracing"
	"mangaapi/persistence"
	"mangaapi/profile"
	"mangaapi/servehttp"
	"mangaapi/session"
	"mangaapi/sessions"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

const decisionCacheTTL = 30 * time.Second

func main() {
	logrus.Info("service start")

	closer, err := initTracer()
	if err != nil {
		logrus.Fatalf("failed to init tracer: %v", err)
	}
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&account.User{}, &account.Group{}, &account.GroupMembership{},
		&dac.Permission{}, &dac.AccessGrant{}, &dac.Owner{},
		&profile.GroupPermissionBinding{}, &event.EventRecord{}, &audit.Entry{},
		&catalog.Manga{}, &catalog.Chapter{},
	).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}

	if err := account.DefaultSecurityConfiguration(); err != nil {
		logrus.Fatalf("failed to prepare default security configuration %v", err)
	}
	if err := profile.SetupProfileGroups(context.Background()); err != nil {
		logrus.Fatalf("failed to setup profile groups %v", err)
	}
	if _, err := profile.ApplyProfile(context.Background(), account.AdminUserID, profile.Admin); err != nil {
		logrus.Fatalf("failed to apply admin profile %v", err)
	}

	if _, err := es.CreateClientFromEnv(); err != nil {
		logrus.Fatalf("failed to create elasticsearch client %v", err)
	}
	if err := s3.Bootstrap(); err != nil {
		logrus.Fatalf("failed to connect cover storage %v", err)
	}

	store := dac.NewGormStore(ds)
	engine := dac.NewEngine(store, decisionCacheTTL)
	registry := enforce.NewRegistry()
	catalog.RegisterTargets(registry)
	authorizer := enforce.NewAuthorizer(engine, registry, profile.HasProfilePermissionFunc)
	manager := dac.NewManager(store, registry.Known)

	registerHooks(engine)

	auditSink := audit.NewGormSink(ds)
	var mirror audit.Sink
	sinks := []audit.Sink{auditSink}
	if es.ActiveESClient != nil {
		mirror = &audit.ESSink{Index: envOrDefault("AUDIT_ES_INDEX", "dac-audit")}
		sinks = append(sinks, mirror)
	}
	bufferSize, err := strconv.Atoi(envOrDefault("AUDIT_BUFFER_SIZE", strconv.Itoa(audit.DefaultBufferSize)))
	if err != nil {
		logrus.Fatalf("invalid AUDIT_BUFFER_SIZE %v", err)
	}
	recorder := audit.NewRecorder(bufferSize, sinks...)

	r := gin.Default()
	r.Use(tracing.TracingIngress(), audit.Middleware(recorder), bizerror.ErrorHandling(), session.OptionalAuthFilter())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "mangaapi")
	})

	authenticated := session.SimpleAuthFilter()
	sessions.RegisterSessionsHandler(r, store)
	sessions.RegisterSessionHandler(r, store, authenticated)
	account.RegisterUsersHandler(r, authenticated)
	account.RegisterGroupsHandler(r, authenticated)
	profile.RegisterProfilesRestAPI(r, authenticated)
	dac.RegisterGrantsRestAPI(r, manager, authenticated)
	audit.RegisterAuditRestAPI(r, auditSink, mirror, authenticated)
	catalog.RegisterCatalogRestAPI(r, authorizer)

	servehttp.StartHTTPServer(r, recorder.Close)
}

// registerHooks keeps profile bindings, grants and cached decisions consistent with account changes.
func registerHooks(engine *dac.Engine) {
	account.UserCreatedHooks = append(account.UserCreatedHooks, func(ctx context.Context, u *account.User) error {
		_, err := profile.ApplyProfile(ctx, u.ID, profile.HomeOnly)
		return err
	})
	account.GroupDeleteHooks = append(account.GroupDeleteHooks,
		dac.DeleteGroupGrantsTx, profile.DeleteGroupBindingsTx,
	)
	account.GroupMemberGuards = append(account.GroupMemberGuards, profile.GuardProfileGroupMembers)
	event.EventHandlers = append(event.EventHandlers, engine.OnEvent)
}

func initTracer() (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mangaapi"
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
