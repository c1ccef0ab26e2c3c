package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath  string `long:"db-path" env:"DB_PATH" default:"./data/articles.db" description:"Path to the SQLite database file"`
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for diagnostics such as challenge screenshots"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://articles.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for pipeline tasks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	TaskTimeout       int    `long:"task-timeout" env:"TASK_TIMEOUT" default:"900" description:"Upper bound for a single task run in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Browser
	BrowserBin        string `long:"browser-bin" env:"BROWSER_BIN" description:"Path to a Chrome/Chromium executable (looked up on PATH when empty)"`
	BrowserHeadful    bool   `long:"browser-headful" env:"BROWSER_HEADFUL" description:"Run the browser with a visible window (needed to solve challenges by hand)"`
	BrowserNoSandbox  bool   `long:"browser-no-sandbox" env:"BROWSER_NO_SANDBOX" description:"Disable the Chrome sandbox (containers)"`
	BrowserNoStealth  bool   `long:"browser-no-stealth" env:"BROWSER_NO_STEALTH" description:"Disable the automation-masking init script"`
	BrowserPoolSize   int    `long:"browser-pool-size" env:"BROWSER_POOL_SIZE" default:"2" description:"Maximum concurrent browser sessions"`
	NavigationTimeout int    `long:"navigation-timeout" env:"NAVIGATION_TIMEOUT" default:"60" description:"Navigation timeout in seconds"`
	SettleMinMs       int    `long:"settle-min-ms" env:"SETTLE_MIN_MS" default:"1000" description:"Minimum randomized settle delay after load in milliseconds"`
	SettleMaxMs       int    `long:"settle-max-ms" env:"SETTLE_MAX_MS" default:"3000" description:"Maximum randomized settle delay after load in milliseconds"`
	ChallengeMaxWait  int    `long:"challenge-max-wait" env:"CHALLENGE_MAX_WAIT" default:"300" description:"Seconds to wait for a search challenge to be resolved (0 waits until the task times out)"`

	// Reference search
	SearchAPIKey      string `long:"search-api-key" env:"GOOGLE_API_KEY" description:"Google Custom Search API key (browser search is used when empty)"`
	SearchEngineID    string `long:"search-engine-id" env:"GOOGLE_SEARCH_ENGINE_ID" description:"Google Custom Search engine ID"`
	SearchURLTemplate string `long:"search-url" env:"SEARCH_URL" default:"https://www.google.com/search?q=%s&hl=en&gl=us&pws=0" description:"Results page URL template for browser search"`

	// Generative model
	LLMAPIKey          string  `long:"llm-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	LLMModel           string  `long:"llm-model" env:"GEMINI_MODEL" default:"gemini-2.5-flash" description:"Gemini model name"`
	LLMTemperature     float64 `long:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.7" description:"Sampling temperature for rewrites"`
	LLMMaxOutputTokens int     `long:"llm-max-output-tokens" env:"LLM_MAX_OUTPUT_TOKENS" default:"3000" description:"Output token cap for rewrites"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36" description:"User agent string for browser sessions and HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		DataDir:            raw.DataDir,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		TaskTimeout:        raw.TaskTimeout,
		APIAccessKey:       raw.APIAccessKey,
		BrowserBin:         raw.BrowserBin,
		BrowserHeadless:    !raw.BrowserHeadful,
		BrowserNoSandbox:   raw.BrowserNoSandbox,
		BrowserStealth:     !raw.BrowserNoStealth,
		BrowserPoolSize:    raw.BrowserPoolSize,
		NavigationTimeout:  raw.NavigationTimeout,
		SettleMinMs:        raw.SettleMinMs,
		SettleMaxMs:        raw.SettleMaxMs,
		ChallengeMaxWait:   raw.ChallengeMaxWait,
		SearchAPIKey:       raw.SearchAPIKey,
		SearchEngineID:     raw.SearchEngineID,
		SearchURLTemplate:  raw.SearchURLTemplate,
		LLMAPIKey:          raw.LLMAPIKey,
		LLMModel:           raw.LLMModel,
		LLMTemperature:     float32(raw.LLMTemperature),
		LLMMaxOutputTokens: raw.LLMMaxOutputTokens,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
		"task timeout":       cfg.TaskTimeout,
		"browser pool size":  cfg.BrowserPoolSize,
		"navigation timeout": cfg.NavigationTimeout,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.SettleMinMs < 0 || cfg.SettleMaxMs < cfg.SettleMinMs {
		return fmt.Errorf("settle delay range is invalid: %d..%d ms", cfg.SettleMinMs, cfg.SettleMaxMs)
	}
	if cfg.ChallengeMaxWait < 0 {
		return fmt.Errorf("challenge max wait must be non-negative")
	}
	if (cfg.SearchAPIKey == "") != (cfg.SearchEngineID == "") {
		return fmt.Errorf("search API key and search engine ID must be set together")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
