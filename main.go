package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"easymund/internal/adminapi"
	"easymund/internal/ambience"
	"easymund/internal/store"
)

func main() {
	configPath := flag.String("config", "config/easymund.yaml", "path to easymund.yaml")
	wsAddr := flag.String("addr", "", "WebSocket listen address (overrides config)")
	adminAddr := flag.String("admin-addr", "", "admin REST API listen address (overrides config; an empty admin_addr in config disables the API)")
	soundsDir := flag.String("sounds", "", "ambience sounds directory (overrides config)")
	dbPath := flag.String("db", "", "sqlite snapshot path (overrides config)")
	insecure := flag.Bool("insecure", false, "force plaintext HTTP even if config requests TLS")
	dataDir := flag.String("data-dir", ".", "directory for debug client_<id>.wav captures")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	if *wsAddr != "" {
		cfg.WSAddr = *wsAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *soundsDir != "" {
		cfg.SoundsDir = *soundsDir
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *insecure {
		cfg.HTTP.IsSecure = false
	}
	log.Printf("[main] config: ws=%s http.is_secure=%v http.content_path=%s sounds=%s packet_size=%d",
		cfg.WSAddr, cfg.HTTP.IsSecure, cfg.HTTP.ContentPath, cfg.SoundsDir, cfg.PacketSize)

	// A missing or unreadable sounds directory is not fatal: rooms simply
	// play without an ambience bed.
	ambiences, err := ambience.LoadDir(cfg.SoundsDir)
	if err != nil {
		log.Printf("[ambience] %v", err)
	}
	if len(ambiences) == 0 {
		log.Printf("[ambience] no ambience files loaded from %s; rooms will play silence", cfg.SoundsDir)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	reg := NewRegistry(ambiences, cfg.PacketSize)
	reloadRooms(reg, st)

	startedAt := time.Now()
	if cfg.AdminAddr != "" {
		api := adminapi.New(newAdminSource(reg), startedAt)
		go func() {
			if err := api.Run(cfg.AdminAddr); err != nil {
				log.Printf("[admin] serve: %v", err)
			}
		}()
		log.Printf("[admin] listening on %s", cfg.AdminAddr)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("[main] create data dir: %v", err)
	}

	srv, err := NewServer(cfg, reg, st, *dataDir)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[main] shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[server] %v", err)
	}
}

// reloadRooms restores any room snapshots written before a previous
// restart. Chat replay is best-effort and capped.
func reloadRooms(reg *Registry, st *store.Store) {
	snapshots, err := st.LoadRooms(context.Background(), 200)
	if err != nil {
		log.Printf("[store] reload rooms: %v", err)
		return
	}
	for _, snap := range snapshots {
		chat := make([]ChatMessage, len(snap.Chat))
		for i, row := range snap.Chat {
			chat[i] = ChatMessage{
				ID:   uint64(row.Seq),
				From: row.From,
				Text: row.Text,
				Time: time.Unix(row.TimeUnix, 0).UTC(),
			}
		}
		reg.RestoreRoom(snap.ID, snap.DisplayName, snap.AmbienceID, chat)
	}
	if len(snapshots) > 0 {
		log.Printf("[main] restored %d room(s) from snapshot", len(snapshots))
	}
}
