package source

var (
	DefaultPaginationSelectors = []string{
		`nav[aria-label="pagination"] a`,
		`.pagination a`,
		`ul.pagination li a`,
		`[class*="pagination"] a`,
		`[class*="page"] a[href*="page"]`,
	}

	DefaultPagePatterns = []string{
		"{index}?page={n}",
		"{index}page/{n}/",
	}

	DefaultItemSelectors = []string{
		`article`,
		`.blog-card`,
		`.post`,
		`[class*="article"]`,
		`[class*="blog"]`,
		`[class*="post-"]`,
		`div[class*="card"]`,
	}

	DefaultTitleSelectors = []string{
		`h1`, `h2`, `h3`, `.title`, `[class*="title"]`, `[class*="heading"]`,
	}

	DefaultPreviewSelectors = []string{
		`.excerpt`, `.description`, `[class*="excerpt"]`, `[class*="description"]`, `.content`, `p`,
	}

	DefaultAuthorSelectors = []string{
		`[rel="author"]`, `.author`, `[class*="author"]`, `meta[name="author"]`,
	}

	DefaultDateSelectors = []string{
		`time[datetime]`, `[datetime]`, `meta[property="article:published_time"]`, `time`, `.date`, `[class*="date"]`,
	}

	DefaultArticleTitleSelectors = []string{
		`h1`, `meta[property="og:title"]`, `title`,
	}

	DefaultContentSelectors = []string{
		`article`,
		`.article-content`,
		`.post-content`,
		`.entry-content`,
		`[role="main"]`,
		`main`,
		`[class*="content"]`,
		`[class*="article"]`,
		`#content`,
	}

	DefaultTagSelectors = []string{
		`meta[property="article:tag"]`, `a[rel="tag"]`, `.tags a`, `[class*="tag"] a`,
	}

	DefaultExcludedDomains = []string{
		"youtube.com", "facebook.com", "twitter.com", "x.com", "linkedin.com", "instagram.com", "pinterest.com",
	}
)

const (
	DefaultRefreshInterval    = 86400
	DefaultTargetCount        = 5
	DefaultTimeout            = 60
	DefaultLinkPath           = "/blog"
	DefaultArticleMaxLength   = 8000
	DefaultReferenceMaxLength = 5000
	DefaultMaxResults         = 2
	DefaultQuerySuffix        = " blog article"
)

func applyDefaults(c *Config) {
	if c.Label == "" {
		c.Label = c.Name
	}

	if c.Settings.RefreshInterval == 0 {
		c.Settings.RefreshInterval = DefaultRefreshInterval
	}
	if c.Settings.TargetCount == 0 {
		c.Settings.TargetCount = DefaultTargetCount
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = DefaultTimeout
	}

	orDefault(&c.Listing.PaginationSelectors, DefaultPaginationSelectors)
	orDefault(&c.Listing.PagePatterns, DefaultPagePatterns)
	orDefault(&c.Listing.ItemSelectors, DefaultItemSelectors)
	orDefault(&c.Listing.TitleSelectors, DefaultTitleSelectors)
	orDefault(&c.Listing.PreviewSelectors, DefaultPreviewSelectors)
	orDefault(&c.Listing.AuthorSelectors, DefaultAuthorSelectors)
	orDefault(&c.Listing.DateSelectors, DefaultDateSelectors)
	if c.Listing.LinkPath == "" {
		c.Listing.LinkPath = DefaultLinkPath
	}

	orDefault(&c.Article.ContentSelectors, DefaultContentSelectors)
	orDefault(&c.Article.TitleSelectors, DefaultArticleTitleSelectors)
	orDefault(&c.Article.AuthorSelectors, DefaultAuthorSelectors)
	orDefault(&c.Article.DateSelectors, DefaultDateSelectors)
	orDefault(&c.Article.TagSelectors, DefaultTagSelectors)
	if c.Article.MaxLength == 0 {
		c.Article.MaxLength = DefaultArticleMaxLength
	}

	if c.References.MaxResults == 0 {
		c.References.MaxResults = DefaultMaxResults
	}
	if c.References.QuerySuffix == "" {
		c.References.QuerySuffix = DefaultQuerySuffix
	}
	orDefault(&c.References.ExcludedDomains, DefaultExcludedDomains)
	orDefault(&c.References.ContentSelectors, DefaultContentSelectors)
	if c.References.MaxLength == 0 {
		c.References.MaxLength = DefaultReferenceMaxLength
	}
}

func orDefault(dst *[]string, defaults []string) {
	if len(*dst) == 0 {
		*dst = append([]string(nil), defaults...)
	}
}

// New builds an enabled config for an index URL with every default applied.
func New(name, indexURL string) *Config {
	c := &Config{Name: name, URL: indexURL}
	c.Settings.Enabled = true
	applyDefaults(c)
	return c
}
