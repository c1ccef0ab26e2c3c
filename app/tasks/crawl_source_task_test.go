package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/browser/browsertest"
)

const sevenPages = `<nav class="pagination">
	<a href="/blogs/page/2/">2</a>
	<a href="/blogs/page/3/">3</a>
	<a href="/blogs/page/7/">7</a>
</nav>`

func seedSevenPageListing(l *browsertest.Launcher) {
	index := listingPage(sevenPages,
		listingCard("newest-post", "The Newest Post On The Blog"),
	)
	lastPage := listingPage(`<nav class="pagination"><a href="/blogs/page/6/">6</a><span>7</span></nav>`,
		listingCard("chatbots-101", "Chatbots 101 For Small Teams"),
		listingCard("live-chat-vs-bots", "Live Chat Versus Chatbots"),
		listingCard("first-post", "Our Very First Post"),
	)

	l.Page(testIndexURL, index).
		Page(testIndexURL+"page/7/", lastPage).
		Page("https://beyondchats.com/blogs/chatbots-101", articlePage("Chatbots 101 For Small Teams")).
		Page("https://beyondchats.com/blogs/live-chat-vs-bots", articlePage("Live Chat Versus Chatbots")).
		Page("https://beyondchats.com/blogs/first-post", articlePage("Our Very First Post"))
}

func crawlTask(t *testing.T, env *testEnv) *CrawlSourceTask {
	t.Helper()

	src, err := env.services.Sources.GetConfig("beyondchats")
	if err != nil {
		t.Fatalf("Expected source config, got: %v", err)
	}
	return NewCrawlSourceTask(src, env.services)
}

func TestCrawlSourceTask_Execute_OldestPageSkipsStored(t *testing.T) {
	env := setupTestEnv(t, true)
	seedSevenPageListing(env.launcher)

	storedURL := "https://beyondchats.com/blogs/first-post"
	env.storeArticle(t, storedURL, "Our Very First Post")

	task := crawlTask(t, env)
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	stats, err := env.services.Articles.GetArticleStats(testLabel)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 stored articles (1 existing + 2 new), got %d", stats.Total)
	}

	if env.launcher.VisitCount(storedURL) != 0 {
		t.Error("Expected the already stored article not to be loaded")
	}

	article, err := env.services.Articles.FindByURL("https://beyondchats.com/blogs/chatbots-101")
	if err != nil || article == nil {
		t.Fatalf("Expected new article to be stored, got %v (err %v)", article, err)
	}
	if article.Title != "Chatbots 101 For Small Teams" {
		t.Errorf("Expected title from the article page, got %q", article.Title)
	}
	if article.Source != testLabel {
		t.Errorf("Expected source label %q, got %q", testLabel, article.Source)
	}
	if article.IsOptimized {
		t.Error("Expected new article not to be optimized")
	}
	if article.PublishedAt == nil || article.PublishedAt.Year() != 2021 {
		t.Errorf("Expected 2021 publish date, got %v", article.PublishedAt)
	}

	src, err := env.services.SourceRepo.GetSource("beyondchats")
	if err != nil || src == nil {
		t.Fatalf("Expected registered source, got %v (err %v)", src, err)
	}
	if src.LastDiscovered != 3 || src.LastInserted != 2 {
		t.Errorf("Expected 3 discovered and 2 inserted, got %d and %d", src.LastDiscovered, src.LastInserted)
	}
	if src.NextCrawlAt == nil {
		t.Error("Expected next crawl time to be set")
	}

	if env.launcher.OpenSessions() != 0 {
		t.Errorf("Expected every session closed, %d left open", env.launcher.OpenSessions())
	}
}

func TestCrawlSourceTask_Execute_Idempotent(t *testing.T) {
	env := setupTestEnv(t, true)
	seedSevenPageListing(env.launcher)

	for i := 0; i < 2; i++ {
		task := crawlTask(t, env)
		task.Start()
		if err := task.Execute(context.Background()); err != nil {
			t.Fatalf("Run %d: expected no error, got: %v", i+1, err)
		}
	}

	stats, err := env.services.Articles.GetArticleStats(testLabel)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 articles after two crawls, got %d", stats.Total)
	}

	src, _ := env.services.SourceRepo.GetSource("beyondchats")
	if src.LastInserted != 0 {
		t.Errorf("Expected second crawl to insert nothing, got %d", src.LastInserted)
	}
	if env.launcher.VisitCount("https://beyondchats.com/blogs/chatbots-101") != 1 {
		t.Error("Expected stored articles not to be reloaded on the second crawl")
	}
}

func TestCrawlSourceTask_Execute_SkipsUnloadableArticle(t *testing.T) {
	env := setupTestEnv(t, true)
	seedSevenPageListing(env.launcher)
	env.launcher.Fail("https://beyondchats.com/blogs/live-chat-vs-bots", errors.New("timeout"))

	task := crawlTask(t, env)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	stats, _ := env.services.Articles.GetArticleStats(testLabel)
	if stats.Total != 2 {
		t.Errorf("Expected 2 articles, got %d", stats.Total)
	}

	missing, _ := env.services.Articles.FindByURL("https://beyondchats.com/blogs/live-chat-vs-bots")
	if missing != nil {
		t.Error("Expected unloadable article not to be stored")
	}
}

func TestCrawlSourceTask_Execute_LaunchErrorIsPermanent(t *testing.T) {
	env := setupTestEnv(t, true)
	env.launcher.LaunchErr = errors.New("no chromium")

	err := crawlTask(t, env).Execute(context.Background())
	if !IsPermanent(err) {
		t.Fatalf("Expected permanent error, got: %v", err)
	}
	if !errors.Is(err, browser.ErrLaunch) {
		t.Errorf("Expected ErrLaunch, got: %v", err)
	}
}

func TestCrawlSourceTask_Execute_IndexFailureIsRetryable(t *testing.T) {
	env := setupTestEnv(t, true)

	err := crawlTask(t, env).Execute(context.Background())
	if err == nil {
		t.Fatal("Expected error when the index cannot be loaded")
	}
	if IsPermanent(err) {
		t.Errorf("Expected retryable error, got permanent: %v", err)
	}
	if !browser.IsFetchError(err) {
		t.Errorf("Expected wrapped fetch error, got: %v", err)
	}
}
