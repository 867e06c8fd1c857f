package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"easymund/internal/httpserver"
	"easymund/internal/store"
	"easymund/internal/wsserver"
)

// Server wires the WebSocket transport, the HTTP front, the registry, and
// the mix tick together, and runs the single inbound dispatcher loop.
type Server struct {
	cfg     Config
	reg     *Registry
	ws      *wsserver.Server
	http    *httpserver.Server
	mixer   *Mixer
	store   *store.Store
	dataDir string
}

// NewServer assembles a Server from configuration, an already-populated
// registry, and an optional store (nil disables persistence).
func NewServer(cfg Config, reg *Registry, st *store.Store, dataDir string) (*Server, error) {
	ws := wsserver.New()
	httpSrv, err := httpserver.New(cfg.HTTP.ContentPath, nil)
	if err != nil {
		return nil, fmt.Errorf("server: init http front: %w", err)
	}
	s := &Server{
		cfg:     cfg,
		reg:     reg,
		ws:      ws,
		http:    httpSrv,
		mixer:   NewMixer(reg, ws, cfg.PacketSize),
		store:   st,
		dataDir: dataDir,
	}
	httpSrv.SetHandler(s.handlePost)
	return s, nil
}

// handlePost is the single registered POST handler, dispatching by path.
// Only "/create" is recognized; everything else yields 404 by returning nil.
func (s *Server) handlePost(path string, body []byte) []byte {
	if path != "/create" {
		return nil
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("[http] /create: bad request body: %v", err)
		return nil
	}
	roomID, err := s.reg.CreateRoom(req.Name)
	if err != nil {
		log.Printf("[http] /create: %v", err)
		return nil
	}
	log.Printf("[http] created room %q (%s)", req.Name, roomID)
	if s.store != nil {
		if snap, ok := s.reg.SnapshotRoom(roomID); ok {
			s.store.UpsertRoom(snap.ID, snap.DisplayName, snap.AmbienceID)
		}
	}
	resp, _ := json.Marshal(struct {
		RoomID string `json:"room_id"`
	}{RoomID: roomID})
	return resp
}

// Run starts the WebSocket listener, the HTTP front, the dispatcher loop,
// and the mix ticker, blocking until ctx is cancelled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	wsLn, err := net.Listen("tcp", s.cfg.WSAddr)
	if err != nil {
		return fmt.Errorf("server: listen ws %s: %w", s.cfg.WSAddr, err)
	}
	go func() {
		if err := s.ws.Serve(wsLn); err != nil {
			log.Printf("[ws] serve: %v", err)
		}
	}()
	log.Printf("[ws] listening on %s", s.cfg.WSAddr)

	httpLn, err := s.listenHTTP()
	if err != nil {
		wsLn.Close()
		return err
	}
	go func() {
		if err := s.http.Serve(httpLn); err != nil {
			log.Printf("[http] serve: %v", err)
		}
	}()
	log.Printf("[http] listening on %s (secure=%v)", httpLn.Addr(), s.cfg.HTTP.IsSecure)

	dispatcher := NewDispatcher(s.reg, s.ws, s.store)
	go s.runDispatcher(ctx, dispatcher)
	go s.runMixTicker(ctx)

	<-ctx.Done()
	wsLn.Close()
	httpLn.Close()
	return nil
}

func (s *Server) listenHTTP() (net.Listener, error) {
	addr := ":80"
	if s.cfg.HTTP.IsSecure {
		addr = ":443"
		tlsConfig, err := loadTLSConfig(s.cfg.CertDir)
		if err != nil {
			return nil, fmt.Errorf("server: tls: %w", err)
		}
		ln, err := tls.Listen("tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("server: listen https %s: %w", addr, err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen http %s: %w", addr, err)
	}
	return ln, nil
}

// runDispatcher is the single consumer of the transport's inbound channel.
// It serializes connect/text/binary/disconnect against the registry, but
// not against the mix tick.
func (s *Server) runDispatcher(ctx context.Context, d *Dispatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.ws.Inbound:
			if !ok {
				return
			}
			switch evt.Kind {
			case wsserver.Connected:
				d.HandleConnect(evt.ClientID, evt.Text)
			case wsserver.Text:
				d.HandleText(evt.ClientID, evt.Text)
			case wsserver.Binary:
				d.HandleBinary(evt.ClientID, evt.Binary)
			case wsserver.Disconnected:
				d.HandleDisconnect(evt.ClientID, func(c *Client) {
					writeClientCapture(s.dataDir, c)
				})
			}
		}
	}
}

// runMixTicker fires the mix tick at packet_size/sample_rate cadence.
func (s *Server) runMixTicker(ctx context.Context) {
	tickPeriod := time.Duration(s.cfg.PacketSize) * time.Second / wavSampleRate
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mixer.Tick()
		}
	}
}
