package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/camera"
)

// AgentConfig tunes the outbound camera agent.
type AgentConfig struct {
	HubURL    string        // e.g. ws://host:3000/ws/agent
	ID        string        // stable agent ID; random when empty
	Name      string        // human-readable label shown on the dashboard
	Framerate int           // frames per second pushed to the hub
	PingEvery time.Duration // keepalive interval
	RedialMin time.Duration // initial reconnect backoff
	RedialMax time.Duration // backoff ceiling
}

// DefaultAgentConfig returns sensible agent defaults.
func DefaultAgentConfig(hubURL string) AgentConfig {
	return AgentConfig{
		HubURL:    hubURL,
		ID:        uuid.NewString(),
		Framerate: 10,
		PingEvery: 15 * time.Second,
		RedialMin: time.Second,
		RedialMax: 30 * time.Second,
	}
}

// Agent pushes frames from a local camera source to a remote hub.
type Agent struct {
	config AgentConfig
	source camera.Source

	wsMutex sync.Mutex
	ws      *websocket.Conn

	frameID       uint64
	captureErrors uint64
}

// NewAgent creates a camera agent for the given source.
func NewAgent(config AgentConfig, source camera.Source) *Agent {
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	if config.Framerate <= 0 {
		config.Framerate = 10
	}
	if config.PingEvery <= 0 {
		config.PingEvery = 15 * time.Second
	}
	if config.RedialMin <= 0 {
		config.RedialMin = time.Second
	}
	if config.RedialMax < config.RedialMin {
		config.RedialMax = 30 * time.Second
	}
	return &Agent{config: config, source: source}
}

// ID returns the agent's identifier.
func (a *Agent) ID() string {
	return a.config.ID
}

// Run connects to the hub and streams frames until the context is cancelled.
// Dropped connections are redialled with exponential backoff.
func (a *Agent) Run(ctx context.Context) error {
	backoff := a.config.RedialMin

	for {
		err := a.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("hub connection lost, reconnecting", "agent_id", a.config.ID, "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > a.config.RedialMax {
			backoff = a.config.RedialMax
		}
	}
}

func (a *Agent) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	url := fmt.Sprintf("%s/%s", a.config.HubURL, a.config.ID)
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("hub dial failed: %w", err)
	}

	a.wsMutex.Lock()
	a.ws = ws
	a.wsMutex.Unlock()
	defer ws.Close()

	width, height := a.source.Resolution()
	hello, err := NewHelloMessage(a.config.ID, a.config.Name, width, height)
	if err != nil {
		return err
	}
	if err := a.send(hello); err != nil {
		return fmt.Errorf("hello failed: %w", err)
	}
	log.Info("connected to hub", "agent_id", a.config.ID, "url", a.config.HubURL)

	// Drain pong replies so control frames do not back up the connection.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	frameTicker := time.NewTicker(time.Second / time.Duration(a.config.Framerate))
	defer frameTicker.Stop()
	pingTicker := time.NewTicker(a.config.PingEvery)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case <-pingTicker.C:
			ping, err := NewMessage(TypePing, nil)
			if err == nil {
				if err := a.send(ping); err != nil {
					return err
				}
			}
			status, err := NewStatusMessage(a.frameID, a.captureErrors)
			if err == nil {
				if err := a.send(status); err != nil {
					return err
				}
			}

		case <-frameTicker.C:
			if err := a.pushFrame(); err != nil {
				return err
			}
		}
	}
}

func (a *Agent) pushFrame() error {
	jpeg, err := a.source.CaptureJPEG()
	if err != nil {
		// Capture hiccups are not fatal; the next tick retries.
		a.captureErrors++
		log.Debug("frame capture failed", "agent_id", a.config.ID, "error", err)
		return nil
	}

	a.frameID++
	width, height := a.source.Resolution()
	msg, err := NewFrameMessage(width, height, jpeg, a.frameID)
	if err != nil {
		return err
	}
	return a.send(msg)
}

func (a *Agent) send(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	a.wsMutex.Lock()
	defer a.wsMutex.Unlock()
	return a.ws.WriteMessage(websocket.TextMessage, data)
}
