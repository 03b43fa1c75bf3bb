package transport

import (
	crypto_tls "crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"rdhost/internal/clock"
	"rdhost/internal/turnconfig"
)

const channelLabel = "screen"
const gatherTimeout = 10 * time.Second

// webrtcChannel adapts *webrtc.DataChannel to the Channel interface a
// Session needs.
type webrtcChannel struct {
	dc *webrtc.DataChannel
}

func (w *webrtcChannel) Send(b []byte) error    { return w.dc.Send(b) }
func (w *webrtcChannel) BufferedAmount() uint64 { return uint64(w.dc.BufferedAmount()) }
func (w *webrtcChannel) Close() error           { return w.dc.Close() }

// SessionHooks supplies everything a fresh Session needs besides its
// transport plumbing. The orchestrator builds one of these per offer.
type SessionHooks struct {
	Authenticator Authenticator
	Callbacks     Callbacks
	HostFPS       func() uint16
	MonitorList   func() (uint8, []MonitorEntry)
}

// Config configures the Transport Server's HTTP/peer-connection surface.
type Config struct {
	Addr           string
	ChunkSize      int
	ICEServers     []webrtc.ICEServer
	TurnConfigPath string
	// TLSConfig, if set, makes ListenAndServe terminate TLS itself instead
	// of serving plaintext HTTP.
	TLSConfig *crypto_tls.Config
	NewHooks  func() SessionHooks
	// OnSession is called once the Session exists, before its data channel
	// has opened, so the orchestrator can stash a reference for sending
	// frames once streaming begins.
	OnSession func(*Session)
}

// Server accepts a single peer's offer at a time; a new offer tears down
// any session still active, matching spec §6's single-peer model.
type Server struct {
	cfg      Config
	turnResp *turnconfig.Response

	mu   sync.Mutex
	pc   *webrtc.PeerConnection
	sess *Session
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = ChunkSizeWAN
	}
	s := &Server{cfg: cfg}
	if cfg.TurnConfigPath != "" {
		resp, err := turnconfig.Load(cfg.TurnConfigPath)
		if err != nil {
			return nil, fmt.Errorf("transport: load turn config: %w", err)
		}
		s.turnResp = resp
	}
	return s, nil
}

// Handler returns the server's HTTP mux. GET /api/turn is only registered
// when a turn_config.json was found, per spec §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/offer", s.handleOffer)
	if s.turnResp != nil {
		mux.HandleFunc("GET /api/turn", s.handleTurn)
	}
	return mux
}

func (s *Server) ListenAndServe() error {
	httpSrv := &http.Server{
		Addr:      s.cfg.Addr,
		Handler:   s.Handler(),
		TLSConfig: s.cfg.TLSConfig,
	}
	if s.cfg.TLSConfig != nil {
		log.Printf("transport: listening on https://%s", s.cfg.Addr)
		return httpSrv.ListenAndServeTLS("", "")
	}
	log.Printf("transport: listening on http://%s", s.cfg.Addr)
	return httpSrv.ListenAndServe()
}

// ChunkSize returns the fragmentation MTU sessions created by this server
// should use.
func (s *Server) ChunkSize() int { return s.cfg.ChunkSize }

type offerBody struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var body offerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SDP == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	prevPC, prevSess := s.pc, s.sess
	s.pc, s.sess = nil, nil
	s.mu.Unlock()
	if prevSess != nil {
		prevSess.Close("superseded by new offer")
	}
	if prevPC != nil {
		prevPC.Close()
	}

	pc, err := webrtc.NewAPI().NewPeerConnection(webrtc.Configuration{ICEServers: s.cfg.ICEServers})
	if err != nil {
		log.Printf("transport: create peer connection: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var hooks SessionHooks
	if s.cfg.NewHooks != nil {
		hooks = s.cfg.NewHooks()
	}

	sess := NewSession(clock.NewSessionID(), nil, hooks.Authenticator, hooks.Callbacks, hooks.HostFPS, hooks.MonitorList)
	sess.MarkOffered()

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != channelLabel {
			return
		}
		sess.ch = &webrtcChannel{dc: dc}
		dc.OnOpen(func() { sess.MarkConnected() })
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			sess.HandleMessage(msg.Data)
		})
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Printf("transport: session %s peer connection state %s", sess.ID, st)
		switch st {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			sess.Close("peer connection " + st.String())
		}
	})

	if s.cfg.OnSession != nil {
		s.cfg.OnSession(sess)
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: body.SDP}); err != nil {
		pc.Close()
		http.Error(w, "bad SDP offer", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-time.After(gatherTimeout):
	}
	sess.MarkGatheringDone()

	local := pc.LocalDescription()
	if local == nil || local.SDP == "" {
		pc.Close()
		http.Error(w, "internal error: empty local description", http.StatusInternalServerError)
		return
	}

	sdp := strings.Replace(local.SDP, "a=setup:actpass", "a=setup:active", 1)
	sess.MarkNegotiated()

	s.mu.Lock()
	s.pc = pc
	s.sess = sess
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(offerBody{SDP: sdp, Type: "answer"})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.turnResp)
}

// Shutdown tears down the active session and peer connection, if any.
func (s *Server) Shutdown() {
	s.mu.Lock()
	pc, sess := s.pc, s.sess
	s.pc, s.sess = nil, nil
	s.mu.Unlock()
	if sess != nil {
		sess.Close("server shutdown")
	}
	if pc != nil {
		pc.Close()
	}
}
