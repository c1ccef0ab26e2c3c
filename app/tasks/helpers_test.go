package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lysyi3m/article-comb/app/browser/browsertest"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/harvest"
	"github.com/lysyi3m/article-comb/app/listing"
	"github.com/lysyi3m/article-comb/app/optimizer"
	"github.com/lysyi3m/article-comb/app/search"
	"github.com/lysyi3m/article-comb/app/source"
)

const (
	testIndexURL = "https://beyondchats.com/blogs/"
	testLabel    = "BeyondChats"
)

const testSourceConfig = `
url: "https://beyondchats.com/blogs/"
label: "BeyondChats"

settings:
  enabled: true
  target_count: 5
  timeout: 5

listing:
  link_path: "/blogs/"
`

type MockProvider struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []string
}

func (m *MockProvider) Name() string    { return "mock" }
func (m *MockProvider) Available() bool { return true }

func (m *MockProvider) Search(ctx context.Context, query string) ([]search.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	return m.results, m.err
}

type MockGenerator struct {
	mu       sync.Mutex
	response string
	errs     []error // returned by successive calls before response is used
	calls    int
}

func (m *MockGenerator) Generate(ctx context.Context, req optimizer.GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	return m.response, nil
}

func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testEnv struct {
	services  *Services
	launcher  *browsertest.Launcher
	provider  *MockProvider
	generator *MockGenerator
}

// setupTestEnv wires real repositories, extraction and optimization around a
// static browser, a canned search provider and a canned generator. With
// withSource false the config cache is empty.
func setupTestEnv(t *testing.T, withSource bool) *testEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	sourcesDir := t.TempDir()
	if withSource {
		if err := os.WriteFile(filepath.Join(sourcesDir, "beyondchats.yml"), []byte(testSourceConfig), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cache := source.NewConfigCache(sourcesDir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Failed to load source configs: %v", err)
	}

	launcher := browsertest.New()
	provider := &MockProvider{}
	generator := &MockGenerator{response: "# Rewritten\n\nA sharper version of the article body."}
	extractor := extract.NewExtractor()

	return &testEnv{
		services: &Services{
			Sources:    cache,
			SourceRepo: database.NewSourceRepository(db),
			Articles:   database.NewArticleRepository(db),
			Launcher:   launcher,
			Crawler:    listing.NewCrawler("test-agent"),
			Extractor:  extractor,
			Search:     search.NewService(provider),
			Harvester:  harvest.NewHarvester(launcher, extractor, 0),
			Optimizer:  optimizer.NewOptimizer(generator, optimizer.Options{}),
			Locks:      NewKeyedMutex(),
		},
		launcher:  launcher,
		provider:  provider,
		generator: generator,
	}
}

func testSourceFor() *source.Config {
	return source.New("beyondchats", testIndexURL)
}

func (e *testEnv) storeArticle(t *testing.T, url, title string) string {
	t.Helper()

	id, inserted, err := e.services.Articles.InsertIfAbsent(database.NewArticle{
		URL:     url,
		Source:  testLabel,
		Title:   title,
		Content: "Original content about " + title,
	})
	if err != nil || !inserted {
		t.Fatalf("Failed to store article: inserted=%t err=%v", inserted, err)
	}
	return id
}

func listingCard(slug, title string) string {
	return fmt.Sprintf(`<article class="entry">
		<h2><a href="/blogs/%s/">%s</a></h2>
		<p class="excerpt">Preview of %s with a few more words.</p>
	</article>`, slug, title, title)
}

func listingPage(pagination string, cards ...string) string {
	return `<html><head><title>Blogs</title></head><body><main>` +
		strings.Join(cards, "\n") + `</main>` + pagination + `</body></html>`
}

func articlePage(title string) string {
	paragraph := "<p>" + strings.Repeat("Chatbots help support teams answer customers faster. ", 4) + "</p>"
	return `<html><head><title>` + title + ` | Blog</title></head><body>
		<nav><a href="/">Home</a></nav>
		<article>
			<h1>` + title + `</h1>
			<span class="author">Team Writer</span>
			<time datetime="2021-06-01T09:00:00Z">June 1, 2021</time>
			` + paragraph + paragraph + `
		</article>
	</body></html>`
}
