// Command backup-server serves the backup wire protocol: user
// authentication and a per-user file mirror that clients reconcile
// their local trees against. See router, authstore and mirror for the
// implementation; this binary only wires configuration, storage and
// the listener together.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xatophi/remote-backup-pds-project/authstore"
	"github.com/xatophi/remote-backup-pds-project/log"
	"github.com/xatophi/remote-backup-pds-project/mirror"
	"github.com/xatophi/remote-backup-pds-project/router"
	"github.com/xatophi/remote-backup-pds-project/serverconfig"
	"github.com/xatophi/remote-backup-pds-project/shutdown"
)

var (
	configPath = flag.String("config", "", "path to the server configuration file")
	logLevel   = flag.String("log", "info", "log level: debug, info, error")

	// perUserLimit and perUserBurst bound how fast one authenticated user
	// may issue mutating requests; see DESIGN.md's Open Question decision
	// on unserialized concurrent requests.
	perUserLimit = flag.Float64("user-rate", 50, "requests per second allowed per authenticated user")
	perUserBurst = flag.Int("user-burst", 100, "burst size for the per-user rate limiter")
)

func main() {
	flag.Parse()

	if err := log.SetLevel(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *configPath == "" {
		log.Error.Printf("backup-server: -config is required")
		os.Exit(1)
	}

	cfg, err := serverconfig.FromFile(*configPath)
	if err != nil {
		log.Error.Printf("backup-server: %v", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.BackupPath, 0o755); err != nil {
		log.Error.Printf("backup-server: creating backup root: %v", err)
		os.Exit(1)
	}

	store, err := authstore.Open(cfg.DBPath)
	if err != nil {
		log.Error.Printf("backup-server: %v", err)
		os.Exit(1)
	}
	shutdown.Handle(func() { store.Close() })

	// A restart must invalidate every outstanding session, per spec.
	store.DeleteAllTokens()

	files := mirror.New(cfg.BackupPath)
	rt := router.New(store, files, rate.Limit(*perUserLimit), *perUserBurst)

	handler := boundedConcurrency(rt, cfg.Threads)

	addr := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info.Printf("backup-server: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error.Printf("backup-server: %v", err)
			shutdown.Now(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	shutdown.Now(0)
}

// boundedConcurrency caps the number of requests the server processes
// at once to threads, the Go analogue of the original server's fixed
// thread pool size (spec.md §6.3's "threads" configuration key).
func boundedConcurrency(next http.Handler, threads int) http.Handler {
	sem := semaphore.NewWeighted(int64(threads))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sem.Acquire(r.Context(), 1); err != nil {
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)
		next.ServeHTTP(w, r)
	})
}
