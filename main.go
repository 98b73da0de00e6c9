package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"visionary-design-server/modules/common/config"
	"visionary-design-server/modules/common/gemini"
	"visionary-design-server/modules/common/logger"
	commonredis "visionary-design-server/modules/common/redis"
	"visionary-design-server/modules/common/storage"
	"visionary-design-server/modules/credential"
	"visionary-design-server/modules/design"
	"visionary-design-server/modules/hub"
	"visionary-design-server/modules/studio"
)

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
	cfg := config.GetConfig()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "healthy",
		"service":  "visionary-design-server",
		"model":    cfg.GeminiModel,
		"proModel": cfg.GeminiProModel,
	})
}

// 서버 메트릭 조회 엔드포인트
func metricsHandler(h *hub.Hub, sessions *studio.Manager, selector *credential.Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, total := sessions.Count()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server": h.Metrics(),
			"studio": map[string]int{
				"activeSessions": active,
				"totalSessions":  total,
			},
			"credential": map[string]int{
				"pendingSelectors": selector.Waiting(),
			},
		})
	}
}

// 세션별 credential 저장소: Redis 우선, 불가 시 메모리
func newCredentialStore(cfg *config.Config) credential.Store {
	if rdb := commonredis.Connect(cfg); rdb != nil {
		return credential.NewRedisStore(rdb, cfg.CredentialTTL)
	}
	logger.Warn("⚠️  Using in-memory credential store")
	return credential.NewMemoryStore()
}

// 생성 결과 공개 방식: Supabase Storage 설정 시 업로드, 아니면 data URL
func newPublisher(cfg *config.Config) design.Publisher {
	if !cfg.StorageEnabled() {
		return design.DataURLPublisher{}
	}
	client, err := storage.NewClient(cfg)
	if err != nil {
		logger.WithError(err).Warn("⚠️  Storage unavailable, falling back to data URLs")
		return design.DataURLPublisher{}
	}
	return design.NewStoragePublisher(client)
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := gemini.NewPool(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to initialize Gemini client")
	}

	realtime := hub.New()
	selector := credential.NewSelector(realtime, cfg.CredentialSelectTimeout)
	credentials := credential.NewManager(newCredentialStore(cfg), selector)

	sessions := studio.NewManager(studio.Dependencies{
		Service:           design.NewGeminiService(pool, newPublisher(cfg), cfg.GeminiModel, cfg.GeminiProModel),
		Credentials:       credentials,
		Broadcaster:       realtime,
		MaxImageBytes:     cfg.MaxImageBytes,
		ProgressInterval:  cfg.ProgressInterval,
		GenerationTimeout: cfg.GenerationTimeout,
	})

	realtime.Accept(sessions.Exists)
	realtime.Handle(hub.MessageCredentialSelected, func(ctx context.Context, sessionID string, msg hub.Message) error {
		return credentials.Select(ctx, sessionID, msg.APIKey)
	})

	// 정리 루틴 시작
	realtime.StartCleanupRoutine(ctx, 5*time.Minute)
	sessions.StartCleanupRoutine(ctx, 30*time.Minute)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(realtime, sessions, selector)).Methods("GET")
	r.HandleFunc("/ws", realtime.ServeWS)
	studio.NewHandler(sessions, credentials).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"websocket": "ws://localhost:" + cfg.Port + "/ws?session=<id>",
			"health":    "http://localhost:" + cfg.Port + "/health",
		}).Info("🚀 Visionary Design Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	realtime.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("❌ Server forced to shutdown")
	}
	logger.Info("✅ Server exited")
}
