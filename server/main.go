package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"suteravr/internal/wire"
	"suteravr/server/store"
)

// Version is the build version reported by the CLI and the status API.
const Version = "0.1.0"

// envOr returns the value of the environment variable or the fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Check for CLI subcommands before parsing flags.
	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:], "suteravr.db") {
			return
		}
	}

	addr := flag.String("addr", ":"+envOr("PORT", "3501"), "clocking TLS listen address")
	apiAddr := flag.String("api-addr", ":3502", "status API listen address (empty to disable)")
	dbPath := flag.String("db", "suteravr.db", "SQLite database path")
	certValidity := flag.Duration("dev-cert-validity", 24*time.Hour, "self-signed certificate validity in development mode")
	maxConnections := flag.Int("max-connections", 500, "maximum concurrent client connections (0=unlimited)")
	flag.Parse()

	env := envOr("ENV", "development")
	debugFrames = envOr("LOG_LEVEL", "info") == "debug"

	log.Println("====================")
	log.Println("SuteraVR / Clocking-server")
	log.Printf("Version: %s (schema %s)", Version, wire.SchemaVersion)
	log.Println("====================")
	log.Printf("[server] running in %s mode", env)

	// Open persistent store; seed defaults on first run.
	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()
	seedDefaults(st)

	tlsConfig, err := loadTLSConfig()
	if err != nil {
		if env != "development" {
			log.Fatalf("[server] failed to load certificates: %v", err)
		}
		// Development fallback: a throwaway self-signed pair.
		hostname := ""
		if h, _, err := net.SplitHostPort(*addr); err == nil {
			hostname = h
		}
		cfg, fingerprint, genErr := devTLSConfig(*certValidity, hostname)
		if genErr != nil {
			log.Fatalf("[server] %v", genErr)
		}
		log.Printf("[server] no certificates found (%v), generated self-signed pair", err)
		log.Printf("[server] certificate fingerprint: %s", fingerprint)
		tlsConfig = cfg
	}

	mgr := NewManager()

	// Spawn the seeded worlds so clients have instances to join.
	worlds, err := st.Worlds()
	if err != nil {
		log.Fatalf("[store] read worlds: %v", err)
	}
	for _, w := range worlds {
		if _, ok := mgr.SpawnNew(wire.InstanceID(w.InstanceID), wire.WorldID(w.WorldID)); !ok {
			log.Printf("[server] world seed %d skipped: instance occupied", w.InstanceID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	reason := ShutdownSigint
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if sig == syscall.SIGTERM {
			reason = ShutdownSigterm
		}
		log.Printf("[server] %s received, shutting down...", sig)
		cancel()
	}()

	go RunMetrics(ctx, mgr, 30*time.Second)

	// Periodically refresh SQLite planner statistics.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := st.Optimize(); err != nil {
					log.Printf("[store] optimize: %v", err)
				}
			}
		}
	}()

	if *apiAddr != "" {
		api := NewAPIServer(mgr, st)
		go api.Run(ctx, *apiAddr)
		log.Printf("[api] listening on %s", *apiAddr)
	}

	srv := NewServer(*addr, tlsConfig, mgr)
	srv.SetMaxConnections(*maxConnections)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[server] %v", err)
	}

	mgr.Shutdown(reason)
	log.Println("[server] shutdown complete, bye!")
}

// seedDefaults writes factory-default settings and the first world when they
// have not been created yet (first-run initialisation).
func seedDefaults(st *store.Store) {
	defaults := [][2]string{
		{"server_name", "suteravr clocking server"},
	}
	for _, kv := range defaults {
		if _, ok, err := st.GetSetting(kv[0]); err == nil && !ok {
			if err := st.SetSetting(kv[0], kv[1]); err != nil {
				log.Printf("[store] seed %q: %v", kv[0], err)
			}
		}
	}

	n, err := st.WorldCount()
	if err != nil {
		log.Printf("[store] world count: %v", err)
		return
	}
	if n == 0 {
		if err := st.AddWorld(1, 1); err != nil {
			log.Printf("[store] seed world: %v", err)
		} else {
			log.Println("[store] seeded instance 1 for world 1")
		}
	}
}
