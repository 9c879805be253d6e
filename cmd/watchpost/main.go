// watchpost: camera monitoring service with live detection overlays
// and cloud reasoning on sustained presence.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/analyze"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/detection"
	"github.com/grovesy/watchpost/pkg/ingest"
	"github.com/grovesy/watchpost/pkg/overlay"
	"github.com/grovesy/watchpost/pkg/session"
	"github.com/grovesy/watchpost/pkg/web"
)

var version = "1.0.0"

var (
	port       = flag.String("port", "3000", "HTTP server port")
	device     = flag.Int("device", 0, "Webcam device ID")
	preset     = flag.String("preset", "default", "Camera preset (480p, default, 1080p, 4k)")
	imagePath  = flag.String("image", "", "Serve a static image instead of a webcam")
	remoteID   = flag.String("remote", "", "Use frames pushed by the named camera agent")
	modelPath  = flag.String("model", "", "YOLO ONNX model path")
	watchClass = flag.String("watch", "person", "Detection class that arms auto-capture")
	windowSec  = flag.Int("window", 0, "Presence window in seconds (0 disables auto-capture)")
	saveDir    = flag.String("save-dir", "", "Directory for capture artifacts (empty disables persistence)")
	steady     = flag.Bool("steady", false, "Slower, extra-stable overlay smoothing")
	autoStart  = flag.Bool("start", false, "Start the detection session immediately")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if envPort := os.Getenv("PORT"); envPort != "" {
		*port = envPort
	}

	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		log.Error("GOOGLE_API_KEY not set")
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Watchpost v" + version)
	fmt.Println()

	// Camera configuration, adjustable at runtime through the dashboard.
	cameras := camera.NewManager()
	camCfg := camera.DefaultConfig()
	if p := camera.GetPreset(*preset); p != nil {
		camCfg = *p
	}
	camCfg.DeviceID = *device
	if err := cameras.SetConfig(camCfg); err != nil {
		log.Error("invalid camera config", "error", err)
		os.Exit(1)
	}

	ingestHub := ingest.NewHub()

	source, cleanup, err := openSource(cameras, ingestHub)
	if err != nil {
		log.Error("camera open failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	detCfg := detection.DefaultYOLOConfig()
	if *modelPath != "" {
		detCfg.ModelPath = *modelPath
	}
	detector, err := detection.NewYOLO(detCfg)
	if err != nil {
		log.Error("detector init failed", "error", err, "model", detCfg.ModelPath)
		os.Exit(1)
	}
	defer detector.Close()

	geminiOpts := []analyze.GeminiOption{}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		geminiOpts = append(geminiOpts, analyze.WithModel(model))
	}
	provider := analyze.NewGemini(apiKey, geminiOpts...)

	pipeOpts := analyze.DefaultOptions()
	pipeOpts.SaveDir = *saveDir
	pipeline := analyze.NewPipeline(provider, pipeOpts)

	sessCfg := session.DefaultConfig()
	sessCfg.WatchClass = *watchClass
	sessCfg.Window = time.Duration(*windowSec) * time.Second
	if *steady {
		sessCfg.Overlay = overlay.SteadyConfig()
	}
	sess := session.New(sessCfg, source, detector, pipeline)

	server := web.NewServer(*port, sess, cameras)
	ingestHub.RegisterRoutes(server.App())
	ingestHub.RegisterAPIRoutes(server.App().Group("/api"))

	if *autoStart {
		sess.Start()
	}

	server.StartAsync()
	log.Info("watchpost ready",
		"dashboard", "http://localhost:"+*port,
		"agents", "ws://localhost:"+*port+"/ws/agent")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	sess.Stop()
	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown error", "error", err)
	}
}

// openSource picks the frame source from flags: a static image, a remote
// agent's stream, or a local webcam.
func openSource(cameras *camera.Manager, hub *ingest.Hub) (camera.Source, func(), error) {
	noop := func() {}

	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			return nil, noop, err
		}
		src, err := camera.NewStaticImage(data)
		if err != nil {
			return nil, noop, err
		}
		log.Info("using static image source", "path", *imagePath)
		return src, noop, nil
	}

	if *remoteID != "" {
		log.Info("using remote agent source", "agent_id", *remoteID)
		return hub.Source(*remoteID), noop, nil
	}

	webcam, err := camera.OpenWebcam(cameras.GetConfig())
	if err != nil {
		return nil, noop, err
	}
	cameras.OnConfigChange = webcam.Apply
	return webcam, func() { webcam.Close() }, nil
}
