package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"worldkeeper.dev/internal/config"
	"worldkeeper.dev/internal/persistence/worlddb"
	"worldkeeper.dev/internal/sim/catalogs"
	"worldkeeper.dev/internal/sim/items"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/worldkeeper.yaml", "config yaml path (missing file means defaults)")
		dbPath     = flag.String("db", "", "world sqlite path (overrides config)")
		itemsPath  = flag.String("items", "", "items catalog path (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "run without persistence")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("config not found (%s); using defaults", *configPath)
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if p := strings.TrimSpace(*dbPath); p != "" {
		cfg.DBPath = p
	}
	if p := strings.TrimSpace(*itemsPath); p != "" {
		cfg.ItemsPath = p
	}
	if *disableDB {
		cfg.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	cat, err := catalogs.LoadItems(cfg.ItemsPath)
	if err != nil {
		logger.Fatalf("load items: %v", err)
	}
	reg := items.NewRegistry()
	cat.Register(reg)
	logger.Printf("items catalog: %d items digest=%s", reg.Len(), cat.Digest)

	engine, err := worlddb.Open(cfg.Engine(), reg, log.New(os.Stdout, "[worlddb] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := syncItems(engine, reg); err != nil {
		logger.Fatalf("sync items: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	ticker := startCommitTicker(ctx, engine, cfg.CommitInterval())

	enableAdminHTTP := envBool("WK_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (WK_ENABLE_ADMIN_HTTP=false)")
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(engine, reg, enableAdminHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}

	cancel()
	<-ticker
	if err := engine.Close(); err != nil {
		logger.Printf("close world db: %v", err)
	}
	logger.Printf("stopped; %+v", engine.Stats())
}

// syncItems makes sure every catalog item has a persisted id so blocks written
// this session can be remapped after the catalog changes.
func syncItems(e *worlddb.Engine, reg *items.Registry) error {
	var err error
	reg.Each(func(it items.Item) {
		if err != nil {
			return
		}
		_, err = e.InsertItem(it.Name)
	})
	return err
}

// startCommitTicker queues a Commit every interval until ctx is done. The
// returned channel is closed once the ticker goroutine has exited.
func startCommitTicker(ctx context.Context, e *worlddb.Engine, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				e.Commit()
			}
		}
	}()
	return done
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
