package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/grovesy/watchpost/internal/log"
)

// ErrNoFrame is returned when a remote camera has not delivered a frame yet.
var ErrNoFrame = errors.New("ingest: no frame received from remote camera")

// AgentConnection represents a connected camera agent
type AgentConnection struct {
	ID        string
	Name      string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu         sync.Mutex
	width      int
	height     int
	lastFrame  []byte
	frameID    uint64
	lastStatus StatusData
}

// Send sends a message to the agent
func (a *AgentConnection) Send(msg *Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return a.Conn.WriteMessage(websocket.TextMessage, data)
}

// LatestFrame returns a copy of the most recent frame and its dimensions.
func (a *AgentConnection) LatestFrame() ([]byte, int, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastFrame == nil {
		return nil, 0, 0, ErrNoFrame
	}
	frame := make([]byte, len(a.lastFrame))
	copy(frame, a.lastFrame)
	return frame, a.width, a.height, nil
}

func (a *AgentConnection) storeFrame(frame *FrameData) error {
	jpeg, err := frame.Decode()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.lastFrame = jpeg
	if frame.Width > 0 && frame.Height > 0 {
		a.width = frame.Width
		a.height = frame.Height
	}
	a.frameID = frame.FrameID
	a.LastSeen = time.Now()
	a.mu.Unlock()
	return nil
}

// Hub manages WebSocket connections from camera agents
type Hub struct {
	mu     sync.RWMutex
	agents map[string]*AgentConnection

	// Callbacks
	onFrame      func(agentID string, jpeg []byte, width, height int)
	onConnect    func(agentID string)
	onDisconnect func(agentID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a new camera agent hub
func NewHub() *Hub {
	return &Hub{
		agents: make(map[string]*AgentConnection),
	}
}

// OnFrame sets the callback for incoming video frames
func (h *Hub) OnFrame(callback func(agentID string, jpeg []byte, width, height int)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// OnConnect sets the callback for agent connections
func (h *Hub) OnConnect(callback func(agentID string)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback for agent disconnections
func (h *Hub) OnDisconnect(callback func(agentID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/agent", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/agent", websocket.New(h.handleAgent))
	app.Get("/ws/agent/:id", websocket.New(h.handleAgent))
}

// handleAgent handles a camera agent WebSocket connection
func (h *Hub) handleAgent(c *websocket.Conn) {
	agentID := c.Params("id")
	if agentID == "" {
		agentID = uuid.NewString()
	}

	agent := &AgentConnection{
		ID:        agentID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.agents[agentID] = agent
	count := len(h.agents)
	connectCb := h.onConnect
	h.mu.Unlock()

	log.Info("camera agent connected", "agent_id", agentID, "total", count)
	if connectCb != nil {
		connectCb(agentID)
	}

	defer func() {
		h.mu.Lock()
		delete(h.agents, agentID)
		count := len(h.agents)
		disconnectCb := h.onDisconnect
		h.mu.Unlock()

		log.Info("camera agent disconnected", "agent_id", agentID, "total", count)
		if disconnectCb != nil {
			disconnectCb(agentID)
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("agent read error", "agent_id", agentID, "error", err)
			return
		}

		agent.mu.Lock()
		agent.LastSeen = time.Now()
		agent.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(agent, data)
	}
}

// handleMessage processes an incoming message from an agent
func (h *Hub) handleMessage(agent *AgentConnection, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		log.Warn("agent message parse error", "agent_id", agent.ID, "error", err)
		return
	}

	switch msg.Type {
	case TypeHello:
		var hello HelloData
		if err := msg.ParseData(&hello); err != nil {
			log.Warn("bad hello from agent", "agent_id", agent.ID, "error", err)
			return
		}
		agent.mu.Lock()
		agent.Name = hello.Name
		if hello.Width > 0 && hello.Height > 0 {
			agent.width = hello.Width
			agent.height = hello.Height
		}
		agent.mu.Unlock()

	case TypeFrame:
		var frame FrameData
		if err := msg.ParseData(&frame); err != nil {
			log.Warn("bad frame from agent", "agent_id", agent.ID, "error", err)
			return
		}
		if err := agent.storeFrame(&frame); err != nil {
			log.Warn("frame decode error", "agent_id", agent.ID, "error", err)
			return
		}
		h.framesReceived.Add(1)

		h.mu.RLock()
		frameCb := h.onFrame
		h.mu.RUnlock()

		if frameCb != nil {
			jpeg, w, ht, err := agent.LatestFrame()
			if err == nil {
				frameCb(agent.ID, jpeg, w, ht)
			}
		}

	case TypeStatus:
		var status StatusData
		if err := msg.ParseData(&status); err != nil {
			log.Warn("bad status from agent", "agent_id", agent.ID, "error", err)
			return
		}
		agent.mu.Lock()
		agent.lastStatus = status
		agent.mu.Unlock()
		log.Debug("agent status",
			"agent_id", agent.ID,
			"frames_sent", status.FramesSent,
			"capture_errors", status.CaptureErrors)

	case TypePing:
		pong, err := NewMessage(TypePong, nil)
		if err == nil {
			pong.Timestamp = msg.Timestamp
			h.messagesSent.Add(1)
			if err := agent.Send(pong); err != nil {
				log.Debug("pong send error", "agent_id", agent.ID, "error", err)
			}
		}
	}
}

// GetAgent returns an agent connection by ID
func (h *Hub) GetAgent(agentID string) *AgentConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agents[agentID]
}

// AgentCount returns the number of connected agents
func (h *Hub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// Stats contains hub statistics
type Stats struct {
	AgentCount       int    `json:"agent_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		AgentCount:       h.AgentCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// AgentInfo contains info about a connected agent
type AgentInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Connected time.Time  `json:"connected"`
	LastSeen  time.Time  `json:"last_seen"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Status    StatusData `json:"status"`
}

// GetAgentInfos returns info about all connected agents
func (h *Hub) GetAgentInfos() []AgentInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(h.agents))
	for _, a := range h.agents {
		a.mu.Lock()
		infos = append(infos, AgentInfo{
			ID:        a.ID,
			Name:      a.Name,
			Connected: a.Connected,
			LastSeen:  a.LastSeen,
			Width:     a.width,
			Height:    a.height,
			Status:    a.lastStatus,
		})
		a.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for agent management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	agents := api.Group("/agents")

	agents.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"agents": h.GetAgentInfos(),
			"count":  h.AgentCount(),
		})
	})

	agents.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// Source returns a camera source backed by the named agent's latest frame.
// The source stays valid across agent reconnects; capture fails while the
// agent is offline or has not pushed a frame yet.
func (h *Hub) Source(agentID string) *RemoteSource {
	return &RemoteSource{hub: h, agentID: agentID}
}

// RemoteSource adapts a connected agent into a camera source.
type RemoteSource struct {
	hub     *Hub
	agentID string
}

// CaptureJPEG returns the latest frame pushed by the agent.
func (s *RemoteSource) CaptureJPEG() ([]byte, error) {
	agent := s.hub.GetAgent(s.agentID)
	if agent == nil {
		return nil, ErrNoFrame
	}
	frame, _, _, err := agent.LatestFrame()
	return frame, err
}

// Resolution returns the agent's reported frame dimensions.
func (s *RemoteSource) Resolution() (int, int) {
	agent := s.hub.GetAgent(s.agentID)
	if agent == nil {
		return 0, 0
	}
	agent.mu.Lock()
	defer agent.mu.Unlock()
	return agent.width, agent.height
}
