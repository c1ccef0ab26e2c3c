package source

// Config describes one article source. Name is derived from the YAML filename.
type Config struct {
	Name       string           // Derived from filename (without .yml extension)
	URL        string           `yaml:"url"`   // Listing index URL
	Label      string           `yaml:"label"` // Source tag stored on articles
	Settings   ConfigSettings   `yaml:"settings"`
	Listing    ListingConfig    `yaml:"listing"`
	Article    ArticleConfig    `yaml:"article"`
	References ReferencesConfig `yaml:"references"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	TargetCount     int  `yaml:"target_count"`     // articles taken from the listing per crawl
	Timeout         int  `yaml:"timeout"`          // navigation timeout in seconds
	AutoOptimize    bool `yaml:"auto_optimize"`    // dispatch optimization for pending articles after each crawl tick
}

type ListingConfig struct {
	PaginationSelectors []string `yaml:"pagination_selectors"`
	PagePatterns        []string `yaml:"page_patterns"` // {index} and {n} placeholders
	ItemSelectors       []string `yaml:"item_selectors"`
	TitleSelectors      []string `yaml:"title_selectors"`
	PreviewSelectors    []string `yaml:"preview_selectors"`
	AuthorSelectors     []string `yaml:"author_selectors"`
	DateSelectors       []string `yaml:"date_selectors"`
	LinkPath            string   `yaml:"link_path"` // path fragment identifying article links
	FeedURL             string   `yaml:"feed_url"`
}

type ArticleConfig struct {
	ContentSelectors []string `yaml:"content_selectors"`
	TitleSelectors   []string `yaml:"title_selectors"`
	AuthorSelectors  []string `yaml:"author_selectors"`
	DateSelectors    []string `yaml:"date_selectors"`
	TagSelectors     []string `yaml:"tag_selectors"`
	MaxLength        int      `yaml:"max_length"`
}

type ReferencesConfig struct {
	MaxResults       int            `yaml:"max_results"`
	QuerySuffix      string         `yaml:"query_suffix"`
	ExcludedDomains  []string       `yaml:"excluded_domains"`
	ContentSelectors []string       `yaml:"content_selectors"`
	MaxLength        int            `yaml:"max_length"`
	Filters          []ConfigFilter `yaml:"filters"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
