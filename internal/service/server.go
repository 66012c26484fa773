package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"guardian-relay/internal/directory"

	"go.uber.org/zap"
)

// Server 运维用 HTTP 服务（保活与健康检查）
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

func (s *Server) Start() error {
	s.logger.Info("Starting guardian-relay HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping guardian-relay HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// SnapshotSource 当前目录快照（由 directory.Cache 实现）
type SnapshotSource interface {
	Snapshot() *directory.Snapshot
}

type healthResponse struct {
	Status     string    `json:"status"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	Units      int       `json:"units"`
	Admins     int       `json:"admins"`
}

// NewHealthHandler /healthz 返回目录快照的代次与数量；目录从未加载时为 degraded
func NewHealthHandler(source SnapshotSource) http.Handler {
	mux := http.NewServeMux()
	handler := func(w http.ResponseWriter, r *http.Request) {
		snap := source.Snapshot()
		resp := healthResponse{
			Status:     "ok",
			Generation: snap.Generation,
			LoadedAt:   snap.LoadedAt,
			Units:      snap.UnitCount(),
			Admins:     snap.AdminCount(),
		}
		if snap.Generation == 0 || snap.AdminCount() == 0 {
			resp.Status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
	mux.HandleFunc("/healthz", handler)
	mux.HandleFunc("/", handler)
	return mux
}
