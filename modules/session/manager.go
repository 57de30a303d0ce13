package session

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound - 존재하지 않는 세션
var ErrNotFound = errors.New("session not found")

// Session - 세션 하나 = 브라우저 UI 인스턴스 하나의 상태
type Session struct {
	id           string
	state        State
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time

	// 상태 브로드캐스트 구독자 (WebSocket 클라이언트의 send 채널)
	subscribers map[chan []byte]struct{}
}

// ID - 세션 ID
func (s *Session) ID() string {
	return s.id
}

// Snapshot - 현재 상태 복사본
func (s *Session) Snapshot() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// Apply - 전이 함수를 mutex 하에서 적용
// 성공 시 새 상태를 저장하고 구독자에게 브로드캐스트, 실패 시 상태 불변
func (s *Session) Apply(fn func(State) (State, error)) (State, error) {
	s.mutex.Lock()
	next, err := fn(s.state)
	if err != nil {
		s.mutex.Unlock()
		return next, err
	}
	s.state = next
	s.lastActivity = time.Now()
	s.mutex.Unlock()

	s.broadcastState(next)
	return next, nil
}

// Subscribe - 상태 브로드캐스트 구독 채널 등록
func (s *Session) Subscribe() chan []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan []byte, 16)
	s.subscribers[ch] = struct{}{}
	s.lastActivity = time.Now()
	return ch
}

// Unsubscribe - 구독 해제 (채널은 여기서 닫음)
func (s *Session) Unsubscribe(ch chan []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.subscribers[ch]; exists {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// broadcastState - 모든 구독자에게 상태 스냅샷 전송
func (s *Session) broadcastState(state State) {
	message, err := json.Marshal(map[string]interface{}{
		"type":      "state_update",
		"sessionId": s.id,
		"state":     state,
	})
	if err != nil {
		log.Printf("Error marshaling state update: %v", err)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- message:
		default:
			// 따라오지 못하는 구독자는 제거
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

// subscriberCount - 현재 구독자 수
func (s *Session) subscriberCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.subscribers)
}

// ServerMetrics - 서버 메트릭
type ServerMetrics struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	StartTime        time.Time `json:"startTime"`
	mutex            sync.RWMutex
}

// Manager - 세션 생성/조회/정리 담당
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	metrics  *ServerMetrics
}

// NewManager - 매니저 생성
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		metrics: &ServerMetrics{
			StartTime: time.Now(),
		},
	}
}

// Create - 새 세션 생성 (id는 uuid)
func (m *Manager) Create() *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	session := &Session{
		id:           uuid.New().String(),
		state:        NewState(),
		createdAt:    now,
		lastActivity: now,
		subscribers:  make(map[chan []byte]struct{}),
	}
	m.sessions[session.id] = session

	// 메트릭 업데이트
	m.metrics.mutex.Lock()
	m.metrics.TotalSessions++
	m.metrics.ActiveSessions++
	m.metrics.mutex.Unlock()

	log.Printf("✅ Created new session: %s (Total: %d, Active: %d)",
		session.id, m.metrics.TotalSessions, m.metrics.ActiveSessions)

	return session
}

// Get - 세션 조회
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return session, nil
}

// TrackConnection - WebSocket 연결 카운트 증가
func (m *Manager) TrackConnection() {
	m.metrics.mutex.Lock()
	m.metrics.TotalConnections++
	m.metrics.mutex.Unlock()
}

// MetricsSnapshot - 메트릭 + 세션별 상세 정보
func (m *Manager) MetricsSnapshot() map[string]interface{} {
	m.metrics.mutex.RLock()
	totalSessions := m.metrics.TotalSessions
	activeSessions := m.metrics.ActiveSessions
	totalConnections := m.metrics.TotalConnections
	startTime := m.metrics.StartTime
	m.metrics.mutex.RUnlock()

	m.mutex.RLock()
	sessionDetails := make([]map[string]interface{}, 0, len(m.sessions))
	for sessionID, session := range m.sessions {
		session.mutex.RLock()
		sessionDetails = append(sessionDetails, map[string]interface{}{
			"sessionId":    sessionID,
			"subscribers":  len(session.subscribers),
			"isLoading":    session.state.IsLoading,
			"hasImage":     session.state.CurrentImage != nil,
			"createdAt":    session.createdAt,
			"lastActivity": session.lastActivity,
			"age":          time.Since(session.createdAt).String(),
			"inactive":     time.Since(session.lastActivity).String(),
		})
		session.mutex.RUnlock()
	}
	m.mutex.RUnlock()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":           time.Since(startTime).String(),
			"startTime":        startTime,
			"totalSessions":    totalSessions,
			"activeSessions":   activeSessions,
			"totalConnections": totalConnections,
		},
		"sessions": sessionDetails,
	}
}

// CleanupExpiredSessions - 만료/비활성 세션 정리
// 생성 후 24시간 지났거나, 구독자 없이 2시간 이상 조용한 세션 제거
func (m *Manager) CleanupExpiredSessions() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	expiredThreshold := 24 * time.Hour
	inactiveThreshold := 2 * time.Hour

	cleaned := 0
	for sessionID, session := range m.sessions {
		session.mutex.RLock()
		isExpired := now.Sub(session.createdAt) > expiredThreshold
		isInactive := now.Sub(session.lastActivity) > inactiveThreshold && len(session.subscribers) == 0
		session.mutex.RUnlock()

		if isExpired || isInactive {
			// 연결된 구독자 정리
			session.mutex.Lock()
			for ch := range session.subscribers {
				delete(session.subscribers, ch)
				close(ch)
			}
			session.mutex.Unlock()

			delete(m.sessions, sessionID)
			cleaned++

			// 메트릭 업데이트
			m.metrics.mutex.Lock()
			m.metrics.ActiveSessions--
			m.metrics.mutex.Unlock()

			reason := "expired"
			if isInactive {
				reason = "inactive"
			}
			log.Printf("⏰ Cleaned up %s session: %s (Age: %v, Inactive: %v)",
				reason, sessionID, now.Sub(session.createdAt), now.Sub(session.lastActivity))
		}
	}

	if cleaned > 0 {
		log.Printf("🧼 Cleaned up %d expired/inactive sessions (Active: %d)", cleaned, m.metrics.ActiveSessions)
	}
	return cleaned
}

// StartCleanupRoutine - 정기적 정리 작업 시작 (30분마다)
func (m *Manager) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			m.CleanupExpiredSessions()
		}
	}()

	log.Printf("🔄 Started session cleanup routine (Expired: 30min)")
}
