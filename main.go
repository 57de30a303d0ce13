package main

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"lumen-studio-server/modules/common/config"
	"lumen-studio-server/modules/imageservice"
	"lumen-studio-server/modules/session"
	"lumen-studio-server/modules/studio"
)

//go:embed web/static
var staticFiles embed.FS

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		// 프로덕션에서는 특정 도메인만 허용하도록 수정
		return true
	},
}

var sessionManager = session.NewManager()

// handleWebSocket - 세션 상태 동기화 채널
// 클라이언트는 수신 전용: 모든 상태 변경은 REST 핸들러를 통해서만 일어남
func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		log.Printf("Missing session parameter")
		http.Error(w, "session parameter is required", http.StatusBadRequest)
		return
	}

	sess, err := sessionManager.Get(sessionID)
	if err != nil {
		log.Printf("⚠️ WebSocket for unknown session: %s", sessionID)
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sessionManager.TrackConnection()
	send := sess.Subscribe()

	log.Printf("🔍 New WebSocket connection - Session: %s", sessionID)

	// 연결 직후 현재 상태 스냅샷 전송
	snapshot, err := json.Marshal(map[string]interface{}{
		"type":      "state_update",
		"sessionId": sessionID,
		"state":     sess.Snapshot(),
	})
	if err == nil {
		conn.WriteMessage(websocket.TextMessage, snapshot)
	}

	// 고루틴으로 읽기/쓰기 처리
	go writePump(conn, send)
	go readPump(conn, sess, send)
}

// writePump - 구독 채널의 상태 업데이트를 클라이언트로 전송
func writePump(conn *websocket.Conn, send chan []byte) {
	defer conn.Close()

	for message := range send {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump - 연결 종료 감지용 (수신 메시지는 무시)
func readPump(conn *websocket.Conn, sess *session.Session, send chan []byte) {
	defer func() {
		sess.Unsubscribe(send)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "lumen-studio",
	})
}

// 서버 메트릭 조회 엔드포인트
func getMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionManager.MetricsSnapshot())
}

// 만료된 세션 강제 정리 (관리자용)
func forceCleanupSessions(w http.ResponseWriter, r *http.Request) {
	cleaned := sessionManager.CleanupExpiredSessions()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "Cleanup completed",
		"cleaned": cleaned,
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// 이미지 서비스 초기화 (API 키 없으면 기동 불가)
	imageService, err := imageservice.NewService(context.Background(), cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize image service: %v", err)
	}

	// 정리 루틴 시작
	sessionManager.StartCleanupRoutine()

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", handleWebSocket)
	r.HandleFunc("/metrics", getMetrics).Methods("GET")
	r.HandleFunc("/admin/cleanup", forceCleanupSessions).Methods("POST")

	studioHandler := studio.NewHandler(sessionManager, imageService, cfg.PreviewQuality)
	studioHandler.RegisterRoutes(r)

	// 정적 프론트엔드 (/app/)
	staticRoot, err := fs.Sub(staticFiles, "web/static")
	if err != nil {
		log.Fatalf("❌ Failed to mount static files: %v", err)
	}
	r.PathPrefix("/app/").Handler(http.StripPrefix("/app/", http.FileServer(http.FS(staticRoot))))

	log.Printf("🚀 Lumen Studio Server starting on port %s", cfg.Port)
	log.Printf("🖼️  Studio UI: http://localhost:%s/app/", cfg.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// 서버 시작
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
