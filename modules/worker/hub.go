package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisutil "poster-studio-server/modules/common/redis"
	"poster-studio-server/modules/pipeline"
)

// StageStatus - 접속 직후 보내는 현재 상태 스냅샷의 stage 값
const StageStatus pipeline.Stage = "status"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		return true
	},
}

// client - job 진행 상황을 구독하는 WebSocket 연결
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// jobSession - job 하나에 대한 구독자 묶음 + Redis 구독
type jobSession struct {
	jobID        string
	clients      map[*client]struct{}
	mutex        sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
	pubsub       *redis.PubSub
	stop         context.CancelFunc
}

// HubMetrics - 허브 메트릭
type HubMetrics struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	Delivered        int       `json:"delivered"`
	StartTime        time.Time `json:"startTime"`
}

// Hub - poster:progress:<jobId> 채널을 WebSocket 구독자에게 중계
type Hub struct {
	rdb      *redis.Client
	sessions map[string]*jobSession
	mutex    sync.Mutex
	metrics  HubMetrics
	maxAge   time.Duration
}

// NewHub - Hub 생성
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:      rdb,
		sessions: make(map[string]*jobSession),
		metrics:  HubMetrics{StartTime: time.Now()},
		maxAge:   2 * time.Hour,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/jobs/{jobId}", h.HandleWebSocket)
	r.HandleFunc("/api/ws/metrics", h.HandleMetrics).Methods("GET")
	log.Info().Msg("✅ [Hub] Routes registered: /ws/jobs/{jobId}, /api/ws/metrics")
}

// HandleWebSocket - 업그레이드 후 job 세션에 참여
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [Hub] WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	session, err := h.join(r.Context(), jobID, c)
	if err != nil {
		log.Error().Err(err).Msgf("❌ [Hub] Failed to subscribe to job %s", jobID)
		conn.Close()
		return
	}

	// 늦게 들어온 구독자를 위한 현재 상태
	if status, err := redisutil.GetJobStatus(r.Context(), h.rdb, jobID); err == nil {
		if snapshot, err := json.Marshal(pipeline.Event{JobID: jobID, Stage: StageStatus, Message: status}); err == nil {
			c.send <- snapshot
		}
	}

	go c.writePump()
	go h.readPump(session, c)
}

// join - 세션이 없으면 Redis 구독을 열고 생성
// 구독 확인(네트워크 왕복)은 hub 잠금 밖에서 수행
func (h *Hub) join(ctx context.Context, jobID string, c *client) (*jobSession, error) {
	h.mutex.Lock()
	if session, exists := h.sessions[jobID]; exists {
		h.addClient(session, c)
		h.mutex.Unlock()
		return session, nil
	}
	h.mutex.Unlock()

	subCtx, stop := context.WithCancel(context.Background())
	pubsub := redisutil.SubscribeProgress(subCtx, h.rdb, jobID)
	// 구독 확인 후에만 발행 이벤트를 놓치지 않음
	if _, err := pubsub.Receive(ctx); err != nil {
		stop()
		pubsub.Close()
		return nil, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	// 구독하는 동안 다른 클라이언트가 같은 job 세션을 만들었으면 그쪽을 사용
	if session, exists := h.sessions[jobID]; exists {
		stop()
		pubsub.Close()
		h.addClient(session, c)
		return session, nil
	}

	now := time.Now()
	session := &jobSession{
		jobID:        jobID,
		clients:      make(map[*client]struct{}),
		createdAt:    now,
		lastActivity: now,
		pubsub:       pubsub,
		stop:         stop,
	}
	h.sessions[jobID] = session
	h.metrics.TotalSessions++
	h.metrics.ActiveSessions++
	go h.forward(session)

	log.Info().Msgf("✅ [Hub] Created session for job %s (Total: %d, Active: %d)",
		jobID, h.metrics.TotalSessions, h.metrics.ActiveSessions)

	h.addClient(session, c)
	return session, nil
}

// addClient - h.mutex 를 잡은 상태에서 호출
func (h *Hub) addClient(session *jobSession, c *client) {
	session.mutex.Lock()
	session.clients[c] = struct{}{}
	session.lastActivity = time.Now()
	count := len(session.clients)
	session.mutex.Unlock()

	h.metrics.TotalConnections++
	log.Info().Msgf("👤 [Hub] Client joined job %s (Clients: %d)", session.jobID, count)
}

// leave - 마지막 구독자가 나가면 Redis 구독도 정리
func (h *Hub) leave(session *jobSession, c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	session.mutex.Lock()
	if _, ok := session.clients[c]; ok {
		delete(session.clients, c)
		close(c.send)
	}
	empty := len(session.clients) == 0
	session.mutex.Unlock()

	if empty && h.sessions[session.jobID] == session {
		h.closeSession(session)
		log.Info().Msgf("🗑️ [Hub] Session for job %s is empty, closed", session.jobID)
	}
}

// closeSession - h.mutex 를 잡은 상태에서 호출
func (h *Hub) closeSession(session *jobSession) {
	delete(h.sessions, session.jobID)
	h.metrics.ActiveSessions--
	session.stop()
	if err := session.pubsub.Close(); err != nil {
		log.Warn().Err(err).Msgf("⚠️ [Hub] Failed to close subscription for job %s", session.jobID)
	}
}

// forward - Redis 메시지를 세션의 모든 구독자에게 전달
func (h *Hub) forward(session *jobSession) {
	for msg := range session.pubsub.Channel() {
		delivered := session.broadcast([]byte(msg.Payload))
		h.mutex.Lock()
		h.metrics.Delivered += delivered
		h.mutex.Unlock()
	}
}

// broadcast - 느린 구독자는 끊음. 전달한 구독자 수 반환
func (s *jobSession) broadcast(message []byte) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastActivity = time.Now()
	delivered := 0
	for c := range s.clients {
		select {
		case c.send <- message:
			delivered++
		default:
			close(c.send)
			delete(s.clients, c)
		}
	}
	return delivered
}

// readPump - 클라이언트 메시지는 무시하고 연결 종료만 감지
func (h *Hub) readPump(session *jobSession, c *client) {
	defer func() {
		h.leave(session, c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("⚠️ [Hub] WebSocket error")
			}
			return
		}
	}
}

// writePump - send 채널을 소켓으로 흘려보냄
func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Msg("⚠️ [Hub] WebSocket write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// cleanupExpiredSessions - maxAge 보다 오래된 세션 강제 종료
func (h *Hub) cleanupExpiredSessions() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := time.Now()
	cleaned := 0
	for _, session := range h.sessions {
		if now.Sub(session.createdAt) <= h.maxAge {
			continue
		}
		session.mutex.Lock()
		for c := range session.clients {
			close(c.send)
			delete(session.clients, c)
		}
		session.mutex.Unlock()
		h.closeSession(session)
		cleaned++
	}
	if cleaned > 0 {
		log.Info().Msgf("🧼 [Hub] Cleaned up %d expired sessions (Active: %d)", cleaned, h.metrics.ActiveSessions)
	}
	return cleaned
}

// StartCleanupRoutine - 주기적으로 만료 세션 정리
func (h *Hub) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.cleanupExpiredSessions()
			}
		}
	}()
	log.Info().Msgf("🔄 [Hub] Started session cleanup routine (every %s)", interval)
}

// Metrics - 현재 메트릭 스냅샷
func (h *Hub) Metrics() HubMetrics {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.metrics
}

// HandleMetrics - GET /api/ws/metrics
func (h *Hub) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	metrics := h.Metrics()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":  time.Since(metrics.StartTime).String(),
		"metrics": metrics,
	})
}
