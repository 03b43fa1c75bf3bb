// Command rdhostd is the remote-desktop host daemon: it captures one of the
// local displays, encodes it, and serves a single authenticated WebRTC peer
// over the transport described in internal/transport.
package main

import (
	crypto_tls "crypto/tls"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rdhost/internal/credential"
	"rdhost/internal/orchestrator"
	"rdhost/internal/platform"
	tlsutil "rdhost/internal/tls"
	"rdhost/internal/turnconfig"

	"github.com/pion/webrtc/v4"
)

var (
	flagDisplay    = flag.String("display", "", "display to capture (auto-detected or started if empty)")
	flagAddr       = flag.String("addr", "127.0.0.1:8443", "HTTPS listen address")
	flagFPS        = flag.Int("fps", 30, "initial capture frame rate")
	flagGPU        = flag.Int("gpu", 0, "GPU index for headless Xorg (Linux only)")
	flagStartX     = flag.Bool("start-x", false, "start a headless Xorg server even if DISPLAY is already set")
	flagResolution = flag.String("resolution", "1920x1080", "resolution for a headless Xorg server")
	flagCredFile   = flag.String("auth-file", "auth.json", "path to the username/PIN credential store")
	flagSetup      = flag.Bool("setup", false, "prompt for a username/PIN and write --auth-file, then exit")
	flagTurnConfig = flag.String("turn-config", "", "path to a turn_config.json (enables GET /api/turn)")
	flagChunkSize  = flag.Int("chunk-size", 0, "data channel fragmentation MTU in bytes (0 = WAN default)")
	flagNvFBC      = flag.Bool("experimental-nvfbc", false, "try the NVIDIA NVFBC capture backend before XShm (Linux only)")
	flagTLS        = flag.Bool("tls", true, "enable TLS with an auto-generated self-signed certificate")
	flagTLSCert    = flag.String("tls-cert", "", "path to a TLS certificate file (PEM)")
	flagTLSKey     = flag.String("tls-key", "", "path to a TLS private key file (PEM)")
	flagLiveness   = flag.Duration("liveness-check", 5*time.Second, "period for the session ping-timeout check")
)

func main() {
	flag.Parse()

	if *flagSetup {
		if _, err := credential.PromptAndSave(*flagCredFile); err != nil {
			log.Fatalf("setup: %v", err)
		}
		return
	}

	if *flagFPS <= 0 {
		log.Fatal("--fps must be > 0")
	}

	creds, err := credential.Load(*flagCredFile)
	if err != nil {
		log.Fatalf("load %s: %v", *flagCredFile, err)
	}
	if creds == nil {
		log.Printf("%s not found — prompting for first-time setup", *flagCredFile)
		if creds, err = credential.PromptAndSave(*flagCredFile); err != nil {
			log.Fatalf("setup: %v", err)
		}
	}

	cfg := &platform.Config{
		Display:    *flagDisplay,
		GPU:        *flagGPU,
		StartX:     *flagStartX,
		Resolution: *flagResolution,
	}

	platform.SaveTermState()
	cleanup, err := platform.Init(cfg)
	if err != nil {
		log.Fatal(err)
	}
	// Headless Xorg with -keeptty modifies terminal settings; restore them
	// now so our own log output renders correctly.
	platform.RestoreTermState()

	if cfg.Display == "" {
		log.Fatal("no display available — use --display, set DISPLAY, or pass --start-x")
	}

	backends, err := newPlatformBackends(cfg, *flagNvFBC)
	if err != nil {
		log.Fatalf("platform backends: %v", err)
	}

	var iceServers []webrtc.ICEServer
	if *flagTurnConfig != "" {
		if resp, err := turnconfig.Load(*flagTurnConfig); err == nil {
			for _, s := range resp.Servers {
				iceServers = append(iceServers, webrtc.ICEServer{
					URLs:       s.URLs,
					Username:   s.Username,
					Credential: s.Credential,
				})
			}
		}
	}

	var tlsConfig *crypto_tls.Config
	if *flagTLSCert != "" {
		if *flagTLSKey == "" {
			log.Fatal("--tls-key is required when --tls-cert is set")
		}
		cert, err := crypto_tls.LoadX509KeyPair(*flagTLSCert, *flagTLSKey)
		if err != nil {
			log.Fatalf("load TLS cert/key: %v", err)
		}
		tlsConfig = &crypto_tls.Config{Certificates: []crypto_tls.Certificate{cert}}
	} else if *flagTLS {
		tc, err := tlsutil.SelfSigned()
		if err != nil {
			log.Fatalf("self-signed cert: %v", err)
		}
		tlsConfig = tc
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Addr:           *flagAddr,
		ChunkSize:      *flagChunkSize,
		TurnConfigPath: *flagTurnConfig,
		ICEServers:     iceServers,
		TLSConfig:      tlsConfig,
		InitialFPS:     *flagFPS,

		MonitorSource:    backends.monitorSource,
		InputBackend:     backends.inputBackend,
		ClipboardBackend: backends.clipboardBackend,
		AudioCapture:     backends.audioCapture,
		Credentials:      creds,

		EncoderFactories: backends.encoderFactories,
		EncoderOrder:     backends.encoderOrder,
	})
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}
	if backends.clipForwarder != nil {
		backends.clipForwarder.SetTarget(orch.OnLocalClipboardChanged)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, shutting down", sig)
		orch.Shutdown()
		cleanup()
		platform.RestoreTermState()
		os.Exit(0)
	}()

	go func() {
		ticker := time.NewTicker(*flagLiveness)
		defer ticker.Stop()
		for range ticker.C {
			orch.CheckLiveness()
		}
	}()

	log.Fatal(orch.Run())
}
