package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"poster-studio-server/modules/common/config"
	"poster-studio-server/modules/common/logger"
	"poster-studio-server/modules/pipeline"
	"poster-studio-server/modules/worker"
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
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "poster-studio",
	})
}

// loadConfig - 로거 초기화 후 설정 로드
func loadConfig() (*config.Config, error) {
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:           "poster-studio",
		Short:         "AI poster generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), generateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Command failed")
	}
}

func serveCmd() *cobra.Command {
	var embeddedWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and optionally the queue worker)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, appOptions{connectRedis: true})
			if err != nil {
				return err
			}

			r := mux.NewRouter()
			r.Use(enableCORS)
			r.HandleFunc("/", healthCheck).Methods("GET")
			r.HandleFunc("/health", healthCheck).Methods("GET")
			pipeline.NewHandler(a.service, a.history, a.uploads).RegisterRoutes(r)

			if a.rdb != nil {
				worker.NewEnqueueHandler(a.rdb, a.jobRecorder()).RegisterRoutes(r)
				worker.NewCancelHandler(a.rdb).RegisterRoutes(r)
				hub := worker.NewHub(a.rdb)
				hub.RegisterRoutes(r)
				hub.StartCleanupRoutine(ctx, 30*time.Minute)

				// Redis Queue Worker 시작 (백그라운드)
				if embeddedWorker {
					w := worker.NewWorker(a.rdb, a.service, a.jobRecorder(), worker.DefaultOptions())
					go func() {
						if err := w.Start(ctx); err != nil {
							log.Error().Err(err).Msg("❌ Worker stopped with error")
						}
					}()
				}
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			log.Info().Msgf("🚀 Poster Studio Server starting on port %s", cfg.Port)
			log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
			log.Info().Msgf("🖼️  Generate: POST http://localhost:%s/api/generate", cfg.Port)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed to start: %w", err)
			case <-ctx.Done():
				log.Info().Msg("🛑 Shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().BoolVar(&embeddedWorker, "worker", true, "also consume the job queue in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	opts := worker.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued poster jobs from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, appOptions{connectRedis: true, requireRedis: true})
			if err != nil {
				return err
			}
			return worker.NewWorker(a.rdb, a.service, a.jobRecorder(), opts).Start(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "jobs processed in parallel")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		req      pipeline.Request
		logos    []string
		products []string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one poster from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}

			if req.Logos, err = readFiles(logos); err != nil {
				return err
			}
			if req.Products, err = readFiles(products); err != nil {
				return err
			}
			req.AssetOverlay = len(req.Logos)+len(req.Products) > 0

			resp, err := a.service.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, resp.Final.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write poster: %w", err)
				}
				log.Info().Msgf("💾 Poster written to %s", out)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVarP(&req.Prompt, "prompt", "p", "", "poster description")
	cmd.Flags().StringVar(&req.AspectRatio, "aspect-ratio", "9:16", "1:1, 3:4, 4:3, 9:16 or 16:9")
	cmd.Flags().IntVar(&req.ImageCount, "images", 0, "candidate images to generate (default from config)")
	cmd.Flags().IntVar(&req.Variants, "variants", 0, "prompt variants to rank (default from config)")
	cmd.Flags().BoolVar(&req.TextOverlay, "text", false, "render a text layer on the final poster")
	cmd.Flags().StringSliceVar(&logos, "logo", nil, "logo image file (repeatable)")
	cmd.Flags().StringSliceVar(&products, "product", nil, "product image file (repeatable)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final poster to this path")
	cmd.MarkFlagRequired("prompt")
	return cmd
}

func readFiles(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		out = append(out, data)
	}
	return out, nil
}
