package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trustrank/internal/api"
	"github.com/wonny/trustrank/internal/api/handlers"
	"github.com/wonny/trustrank/internal/ranking"
	"github.com/wonny/trustrank/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                          - Health check
  POST /api/companies/{id}/recompute    - 단일 회사 재계산 (회사당 분당 5회)
  POST /api/recompute                   - 전체 배치 1회 실행
  GET  /api/runs/last                   - 마지막 배치 결과 + 커서
  GET  /api/rankings                    - 랭킹 (Guard 통과 회사만)
  GET  /api/companies/{id}/forecasts    - 예측 (reasoning 은 premium/admin 만)
  GET  /api/companies/{id}/changelog    - 점수 변경 감사 로그
  GET  /api/flags                       - 현재 플래그 스냅샷

Example:
  go run ./cmd/trustrank api
  go run ./cmd/trustrank api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== TrustRank API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	if err := a.ping(cmd.Context()); err != nil {
		return err
	}

	log := a.log
	router := api.NewRouter(api.Handlers{
		Score: handlers.NewScoreHandler(
			a.orchestrator,
			redis.NewRateLimiter(a.redis),
			a.jobState,
			a.cfg.Scoring.JobName,
			log.WithComponent("api.score"),
		),
		Ranking:  handlers.NewRankingHandler(ranking.NewService(a.rankings, log.WithComponent("ranking")), a.flags, log),
		Forecast: handlers.NewForecastHandler(a.forecasts, log),
		Audit:    handlers.NewAuditHandler(a.changeLog, a.flags, log),
	}, log)

	server := api.New(a.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
