package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds the graceful shutdown of in-flight requests.
var ShutdownTimeout = 3 * time.Second

// Addr is ":" + PORT, falling back to 8080.
func Addr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

// StartHTTPServer serves engine until SIGINT or SIGTERM, then shuts the server down gracefully and runs the
// hooks in order, after no request is in flight anymore.
func StartHTTPServer(engine *gin.Engine, shutdownHooks ...func()) {
	srv := &http.Server{
		Addr:    Addr(),
		Handler: engine,
	}

	go func() {
		logrus.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill -9 can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Infof("[QUIT] shutdown signal has been received, the service will exit in %s", ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("[QUIT] http server shutdown failed: %v", err)
	} else {
		logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected")
	}

	for _, hook := range shutdownHooks {
		hook()
	}
	logrus.Info("[QUIT] service exiting")
}
