// Command viewer serves stored packets over HTTP: JSON and VideoPose3D
// downloads, trajectory charts, and the database admin routes under /debug/.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/pose/viewer"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbPath      = flag.String("db", "pose.db", "SQLite database of stored packets")
	noAdmin     = flag.Bool("no-admin", false, "Do not mount the /debug/ admin routes")
	verbose     = flag.Bool("v", false, "Log diagnostics")
	trace       = flag.Bool("trace", false, "Log every request")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	w := pose.LogWriters{Ops: os.Stderr}
	if *verbose {
		w.Diag = os.Stderr
	}
	if *trace {
		w.Trace = os.Stderr
	}
	pose.SetLogWriters(w)

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	s := viewer.New(sqlite.NewPacketStore(db.DB))
	if !*noAdmin {
		if err := db.AttachAdminRoutes(s.Mux()); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              *listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("serving %s on %s", *dbPath, *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
