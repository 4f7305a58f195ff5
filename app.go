package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"poster-studio-server/modules/assetlayer"
	"poster-studio-server/modules/common/config"
	"poster-studio-server/modules/common/database"
	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/openai"
	redisutil "poster-studio-server/modules/common/redis"
	"poster-studio-server/modules/common/retry"
	"poster-studio-server/modules/common/storage"
	"poster-studio-server/modules/common/vertexai"
	"poster-studio-server/modules/edit"
	"poster-studio-server/modules/engine"
	"poster-studio-server/modules/evaluate"
	"poster-studio-server/modules/history"
	"poster-studio-server/modules/pipeline"
	"poster-studio-server/modules/prompt"
	"poster-studio-server/modules/refine"
	"poster-studio-server/modules/textlayer"
	"poster-studio-server/modules/worker"
)

// app - 명령들이 공유하는 구성 요소
type app struct {
	cfg     *config.Config
	service *pipeline.Service
	history *history.Store
	uploads *storage.LocalStore
	db      *database.Client
	rdb     *redis.Client
}

// appOptions - 명령별로 다른 부분
type appOptions struct {
	// requireRedis - worker 는 Redis 없이 시작 불가
	requireRedis bool
	// connectRedis - generate 명령은 Redis 를 쓰지 않음
	connectRedis bool
}

// buildApp - 설정대로 파이프라인 전체를 조립
func buildApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	policy := retry.NewPolicy(cfg.RetryMaxAttempts, cfg.RetryBaseDelay, cfg.ProviderRPS)

	geminiClient, err := newGeminiClient(ctx, cfg, policy)
	if err != nil {
		return nil, err
	}

	// 텍스트 생성은 Gemini, 평가/심사는 설정에 따라 OpenAI 또는 Gemini
	textCompleter := llm.Completer(gemini.NewCompleter(geminiClient, cfg.GeminiTextModel))
	judge := textCompleter
	scriptWriter := textCompleter
	if cfg.JudgeProvider == "openai" {
		judge = openai.NewCompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEvalModel, policy)
		scriptWriter = openai.NewCompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITextModel, policy)
	}

	imageEngine, err := engine.New(engineOptions(cfg), geminiClient)
	if err != nil {
		return nil, err
	}

	loop := refine.NewLoop(
		evaluate.NewEvaluator(judge),
		edit.NewEditor(geminiClient, cfg.GeminiImageModel),
		refine.Config{
			TargetScore:         cfg.RefineTargetScore,
			MaxIterations:       cfg.RefineMaxIterations,
			NoImprovementWindow: cfg.RefineNoImprovementWindow,
			EvaluateScope:       refine.EvaluateScope(cfg.RefineEvaluateScope),
		},
	)

	text := textlayer.NewService(
		scriptWriter,
		judge,
		textlayer.NewExecutor(cfg.ScriptInterpreter, cfg.ScriptTimeout, cfg.TempDir),
		textlayer.Config{TargetScore: cfg.TextTargetScore, MaxIterations: cfg.TextMaxIterations},
	)

	assets := assetlayer.NewLayer(
		assetlayer.NewPositioner(gemini.NewCompleter(geminiClient, cfg.PositioningModel)),
		assetlayer.NewCleaner(geminiClient, cfg.GeminiImageModel),
		assetlayer.DefaultCompositeOptions(),
	)

	a := &app{cfg: cfg, uploads: storage.NewLocalStore(cfg.UploadDir)}

	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		a.db = database.NewClient()
	}

	var sink history.Sink = history.NewFileSink(cfg.HistoryFile)
	if cfg.HistoryBackend == "supabase" {
		if a.db == nil {
			return nil, fmt.Errorf("history backend supabase requires a database client")
		}
		sink = history.NewSupabaseSink(a.db)
	}
	if a.history, err = history.NewStore(ctx, sink); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var progress pipeline.Progress = pipeline.NopProgress{}
	if opts.connectRedis {
		a.rdb = redisutil.Connect(cfg)
		if a.rdb == nil && opts.requireRedis {
			return nil, fmt.Errorf("failed to connect to Redis at %s", cfg.GetRedisAddr())
		}
		if a.rdb != nil {
			progress = pipeline.NewRedisProgress(a.rdb)
		} else {
			log.Warn().Msg("⚠️ [App] Redis unavailable, async jobs and progress streaming disabled")
		}
	}

	deps := pipeline.Deps{
		Enhancer: prompt.NewEnhancer(textCompleter),
		Ranker:   prompt.NewRanker(judge),
		Engine:   imageEngine,
		Refiner:  loop,
		Assets:   assets,
		Text:     text,
		Files:    a.uploads,
		History:  a.history,
		Progress: progress,
	}
	if cfg.UploadResults {
		deps.Uploader = storage.NewClient()
	}

	a.service = pipeline.NewService(deps, pipeline.Options{
		Variants:   cfg.PromptVariants,
		ImageCount: cfg.ImageCount,
	})
	return a, nil
}

// jobRecorder - DB 가 없으면 nil 인터페이스
func (a *app) jobRecorder() worker.JobRecorder {
	if a.db == nil {
		return nil
	}
	return a.db
}

// newGeminiClient - API 키 로테이션 또는 Vertex AI 단일 클라이언트
func newGeminiClient(ctx context.Context, cfg *config.Config, policy retry.Policy) (*gemini.Client, error) {
	if cfg.GeminiBackend == "vertex" {
		vc, err := vertexai.NewClient(ctx, cfg.VertexProject, cfg.VertexLocation)
		if err != nil {
			return nil, err
		}
		return gemini.NewClientFrom([]*genai.Client{vc}, policy)
	}
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKeys, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func engineOptions(cfg *config.Config) engine.Options {
	if cfg.ImageEngine == string(engine.KindGemini) {
		return engine.Options{
			Kind: engine.KindGemini,
			Gemini: &engine.GeminiOptions{
				Model:              cfg.GeminiImageModel,
				Temperature:        0.8,
				UseReferenceAssets: true,
			},
		}
	}
	return engine.Options{
		Kind: engine.KindImagen,
		Imagen: &engine.ImagenOptions{
			Model:      cfg.ImagenModel,
			MIMEType:   "image/png",
			AllowAdult: cfg.ImagenAllowAdult,
		},
	}
}
