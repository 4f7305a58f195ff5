package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port      string
	LogLevel  string
	LogFormat string

	// Redis
	RedisHost      string
	RedisPort      string
	RedisUsername  string
	RedisPassword  string
	RedisUseTLS    bool
	// RedisTLSVerify - false 면 인증서 검증 생략 (자체 서명 인증서를 쓰는 관리형 Redis)
	RedisTLSVerify bool

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	UploadResults      bool

	// Gemini API
	GeminiAPIKeys    []string
	GeminiTextModel  string
	GeminiImageModel string
	ImagenModel      string
	PositioningModel string

	// Vertex AI (GEMINI_BACKEND=vertex 일 때 API 키 대신 사용)
	GeminiBackend  string // "api" | "vertex"
	VertexProject  string
	VertexLocation string

	// OpenAI (judge)
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIEvalModel string
	OpenAITextModel string
	JudgeProvider   string // "openai" | "gemini"

	// Image engine
	ImageEngine      string // "gemini" | "imagen"
	ImagenAllowAdult bool
	ImageCount       int
	PromptVariants   int

	// Refinement loop
	RefineTargetScore         float64
	RefineMaxIterations       int
	RefineNoImprovementWindow int
	RefineEvaluateScope       string // "all" | "first"

	// Text overlay
	TextTargetScore   float64
	TextMaxIterations int
	ScriptTimeout     time.Duration
	ScriptInterpreter string

	// Files
	TempDir        string
	UploadDir      string
	HistoryFile    string
	HistoryBackend string // "file" | "supabase"

	// Retry
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	ProviderRPS      float64
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg := FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().Msgf("   Engine: %s (gemini image: %s, imagen: %s)", cfg.ImageEngine, cfg.GeminiImageModel, cfg.ImagenModel)
	log.Info().Msgf("   Judge: %s (%d gemini keys, openai: %v)", cfg.JudgeProvider, len(cfg.GeminiAPIKeys), cfg.OpenAIAPIKey != "")
	log.Info().Msgf("   Refine: target %.1f, max %d, window %d, scope %s",
		cfg.RefineTargetScore, cfg.RefineMaxIterations, cfg.RefineNoImprovementWindow, cfg.RefineEvaluateScope)
	log.Info().Msgf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	log.Info().Msgf("   History: %s", cfg.HistoryBackend)

	return globalConfig, nil
}

// FromEnv - .env 로드 없이 현재 환경변수로 Config 생성 (테스트/CLI 용)
func FromEnv() *Config {
	keys := splitList(getEnv("GEMINI_API_KEYS", ""))
	if single := getEnv("GEMINI_API_KEY", ""); single != "" && !contains(keys, single) {
		keys = append(keys, single)
	}

	judge := strings.ToLower(getEnv("JUDGE_PROVIDER", ""))
	if judge == "" {
		judge = "gemini"
		if getEnv("OPENAI_API_KEY", "") != "" {
			judge = "openai"
		}
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisUsername:  getEnv("REDIS_USERNAME", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:    getEnvBool("REDIS_USE_TLS", false),
		RedisTLSVerify: getEnvBool("REDIS_TLS_VERIFY", false),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		UploadResults:      getEnvBool("UPLOAD_RESULTS", false),

		GeminiAPIKeys:    keys,
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-pro"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		ImagenModel:      getEnv("IMAGEN_MODEL", "imagen-4.0-generate-001"),
		PositioningModel: getEnv("POSITIONING_MODEL", "gemini-2.5-flash"),

		GeminiBackend:  strings.ToLower(getEnv("GEMINI_BACKEND", "api")),
		VertexProject:  getEnv("VERTEXAI_PROJECT", ""),
		VertexLocation: getEnv("VERTEXAI_LOCATION", "us-central1"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIEvalModel: getEnv("OPENAI_EVAL_MODEL", "gpt-4o-mini"),
		OpenAITextModel: getEnv("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
		JudgeProvider:   judge,

		ImageEngine:      strings.ToLower(getEnv("IMAGE_ENGINE", "imagen")),
		ImagenAllowAdult: getEnvBool("IMAGEN_ALLOW_ADULT", true),
		ImageCount:       getEnvInt("IMAGE_COUNT", 2),
		PromptVariants:   getEnvInt("PROMPT_VARIANTS", 3),

		RefineTargetScore:         getEnvFloat("REFINE_TARGET_SCORE", 9.5),
		RefineMaxIterations:       getEnvInt("REFINE_MAX_ITERATIONS", 6),
		RefineNoImprovementWindow: getEnvInt("REFINE_NO_IMPROVEMENT_WINDOW", 2),
		RefineEvaluateScope:       strings.ToLower(getEnv("REFINE_EVALUATE_SCOPE", "all")),

		TextTargetScore:   getEnvFloat("TEXT_TARGET_SCORE", 9.0),
		TextMaxIterations: getEnvInt("TEXT_MAX_ITERATIONS", 3),
		ScriptTimeout:     getEnvDuration("SCRIPT_TIMEOUT", 60*time.Second),
		ScriptInterpreter: getEnv("SCRIPT_INTERPRETER", "python3"),

		TempDir:        getEnv("TEMP_DIR", os.TempDir()),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		HistoryFile:    getEnv("HISTORY_FILE", "history.json"),
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", "file")),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
		ProviderRPS:      getEnvFloat("PROVIDER_RPS", 0),
	}
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal().Msg("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	switch c.GeminiBackend {
	case "api":
		if len(c.GeminiAPIKeys) == 0 {
			return fmt.Errorf("GEMINI_API_KEY or GEMINI_API_KEYS is required")
		}
	case "vertex":
		if c.VertexProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required for GEMINI_BACKEND=vertex")
		}
	default:
		return fmt.Errorf("GEMINI_BACKEND must be api or vertex, got %q", c.GeminiBackend)
	}
	if c.JudgeProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when JUDGE_PROVIDER=openai")
	}
	if c.JudgeProvider != "openai" && c.JudgeProvider != "gemini" {
		return fmt.Errorf("JUDGE_PROVIDER must be openai or gemini, got %q", c.JudgeProvider)
	}
	if c.ImageEngine != "gemini" && c.ImageEngine != "imagen" {
		return fmt.Errorf("IMAGE_ENGINE must be gemini or imagen, got %q", c.ImageEngine)
	}
	if c.RefineEvaluateScope != "all" && c.RefineEvaluateScope != "first" {
		return fmt.Errorf("REFINE_EVALUATE_SCOPE must be all or first, got %q", c.RefineEvaluateScope)
	}
	if c.HistoryBackend == "supabase" && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for HISTORY_BACKEND=supabase")
	}
	if c.UploadResults && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for UPLOAD_RESULTS")
	}
	if c.RefineMaxIterations < 0 || c.TextMaxIterations < 0 {
		return fmt.Errorf("iteration limits must not be negative")
	}
	return nil
}

// SetForTest - 테스트에서 전역 설정 주입
func SetForTest(cfg *Config) {
	globalConfig = cfg
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid integer for %s: %q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid number for %s: %q, using %g", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration - "60s" 형식 또는 초 단위 정수 모두 허용
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
