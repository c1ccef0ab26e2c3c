package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath  string
	DataDir string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	TaskTimeout       int
	APIAccessKey      string

	// Browser
	BrowserBin        string
	BrowserHeadless   bool
	BrowserNoSandbox  bool
	BrowserStealth    bool
	BrowserPoolSize   int
	NavigationTimeout int
	SettleMinMs       int
	SettleMaxMs       int
	ChallengeMaxWait  int

	// Reference search
	SearchAPIKey      string
	SearchEngineID    string
	SearchURLTemplate string

	// Generative model
	LLMAPIKey          string
	LLMModel           string
	LLMTemperature     float32
	LLMMaxOutputTokens int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) NavigationTimeoutDuration() time.Duration {
	return time.Duration(c.NavigationTimeout) * time.Second
}

func (c *Cfg) ChallengeMaxWaitDuration() time.Duration {
	return time.Duration(c.ChallengeMaxWait) * time.Second
}

func (c *Cfg) TaskTimeoutDuration() time.Duration {
	return time.Duration(c.TaskTimeout) * time.Second
}

func (c *Cfg) SearchAPIEnabled() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}
