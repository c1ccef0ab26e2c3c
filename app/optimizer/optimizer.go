package optimizer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/harvest"
)

const (
	DefaultMaxReferences   = 5
	DefaultExcerptLength   = 2000
	DefaultMaxOutputTokens = 3000
	DefaultTemperature     = 0.7

	// Lines ahead of the model's title heading count as preamble only within these bounds.
	maxPreambleLines  = 2
	maxPreambleLength = 200

	referencesIntro = "This article was optimized based on insights from the following sources:"
	DisclosureNote  = "*Note: This article was rewritten without external reference sources because no comparable articles could be retrieved at the time of optimization.*"
)

var (
	fencePattern      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```\\s*$")
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	listItemPattern   = regexp.MustCompile(`^([-*+]|\d+[.)])\s`)
	headingPattern    = regexp.MustCompile(`^\s*#{1,6}\s`)
	leadInPattern     = regexp.MustCompile(`(?i)(:$|\b(here is|here's|here are|sure|certainly|rewritten|optimized version)\b)`)
)

type Article struct {
	Title   string
	Content string
}

type Result struct {
	Content    string
	References []harvest.Reference // empty when the disclosure note was appended
}

type Options struct {
	MaxReferences   int
	ExcerptLength   int
	MaxOutputTokens int32
	Temperature     *float32 // nil uses DefaultTemperature; zero is a valid setting
}

type Optimizer struct {
	generator Generator
	opts      Options
}

func NewOptimizer(generator Generator, opts Options) *Optimizer {
	opts.MaxReferences = cmp.Or(opts.MaxReferences, DefaultMaxReferences)
	opts.ExcerptLength = cmp.Or(opts.ExcerptLength, DefaultExcerptLength)
	opts.MaxOutputTokens = cmp.Or(opts.MaxOutputTokens, DefaultMaxOutputTokens)
	if opts.Temperature == nil {
		temperature := float32(DefaultTemperature)
		opts.Temperature = &temperature
	}

	return &Optimizer{
		generator: generator,
		opts:      opts,
	}
}

// Optimize rewrites the article. Any generator failure is returned and nothing else happens.
func (o *Optimizer) Optimize(ctx context.Context, article Article, references []harvest.Reference) (*Result, error) {
	if len(references) > o.opts.MaxReferences {
		references = references[:o.opts.MaxReferences]
	}

	prompt := o.buildPrompt(article, references)

	text, err := o.generator.Generate(ctx, GenerateRequest{
		Prompt:          prompt,
		MaxOutputTokens: o.opts.MaxOutputTokens,
		Temperature:     *o.opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate optimized content: %w", err)
	}

	body := normalizeOutput(text, article.Title)
	if strings.TrimSpace(strings.TrimPrefix(body, "# "+article.Title)) == "" {
		return nil, ErrEmptyGeneration
	}

	result := &Result{}
	if len(references) > 0 {
		result.Content = body + citationBlock(references)
		result.References = references
	} else {
		result.Content = body + "\n\n---\n\n" + DisclosureNote
	}

	slog.Info("Article optimized", "title", article.Title, "references", len(result.References), "length", extract.Length(result.Content))

	return result, nil
}

func (o *Optimizer) buildPrompt(article Article, references []harvest.Reference) string {
	var b strings.Builder

	b.WriteString("You are an expert content writer and SEO specialist. ")
	if len(references) > 0 {
		b.WriteString("Your task is to rewrite and optimize the following article based on the style and formatting of top-ranking articles on Google.\n\n")
	} else {
		b.WriteString("Your task is to rewrite and optimize the following article following the conventions of top-ranking blog articles.\n\n")
	}

	b.WriteString("ORIGINAL ARTICLE:\n")
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "Content:\n%s\n\n", article.Content)

	if len(references) > 0 {
		b.WriteString("REFERENCE ARTICLES (Top Google Results):\n")
		for i, ref := range references {
			fmt.Fprintf(&b, "\nReference %d: %s\n", i+1, ref.Title)
			fmt.Fprintf(&b, "URL: %s\n", ref.URL)
			fmt.Fprintf(&b, "Content Preview:\n%s\n---\n", extract.Truncate(ref.Content, o.opts.ExcerptLength))
		}
		b.WriteString("\n")
	}

	b.WriteString("INSTRUCTIONS:\n")
	if len(references) > 0 {
		b.WriteString("1. Rewrite the original article to match the style, tone, and formatting of the reference articles\n")
	} else {
		b.WriteString("1. Rewrite the original article in the style of a well-performing, professional blog article\n")
	}
	b.WriteString("2. Improve readability, structure, and SEO optimization\n")
	b.WriteString("3. Keep the core message and facts from the original article\n")
	b.WriteString("4. Use proper headings (##, ###), bullet points, and formatting\n")
	b.WriteString("5. Make it engaging and professional\n")
	b.WriteString("6. Ensure the article is between 800-1500 words\n")
	b.WriteString("7. Do NOT include any preamble or meta-commentary - provide ONLY the rewritten article content\n")
	b.WriteString("8. Start directly with the article title as an H1 heading (# Title)\n\n")
	b.WriteString("OPTIMIZED ARTICLE:")

	return b.String()
}

// normalizeOutput strips code fences and a leading preamble, then guarantees exactly one
// leading "# title" heading with every later H1 demoted to H2.
func normalizeOutput(text, title string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	lines := strings.Split(text, "\n")
	lines = lines[bodyStart(lines):]

	out := make([]string, 0, len(lines)+2)
	out = append(out, "# "+extract.Normalize(title), "")

	inFence := false
	for _, line := range lines {
		if isFence(line) {
			inFence = !inFence
		}
		if !inFence && isH1(line) {
			line = "#" + strings.TrimLeft(line, " ")
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	result := strings.TrimSpace(strings.Join(out, "\n"))
	return blankLinesPattern.ReplaceAllString(result, "\n\n")
}

// bodyStart is the index of the line after the model's own title heading. It is
// zero unless the first heading outside code fences is an H1 preceded only by preamble.
func bodyStart(lines []string) int {
	var preamble []string

	for i, line := range lines {
		if isFence(line) {
			return 0
		}
		if headingPattern.MatchString(line) {
			if !isH1(line) || !isPreamble(preamble) {
				return 0
			}
			return i + 1
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			preamble = append(preamble, trimmed)
		}
	}

	return 0
}

// isPreamble accepts no lines, or a few short lines that read as a lead-in to the article.
func isPreamble(lines []string) bool {
	if len(lines) == 0 {
		return true
	}
	if len(lines) > maxPreambleLines {
		return false
	}

	leadIn := false
	for _, line := range lines {
		if extract.Length(line) > maxPreambleLength || listItemPattern.MatchString(line) || strings.HasPrefix(line, ">") {
			return false
		}
		leadIn = leadIn || leadInPattern.MatchString(line)
	}
	return leadIn
}

func isH1(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "# ")
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

func citationBlock(references []harvest.Reference) string {
	var b strings.Builder

	b.WriteString("\n\n---\n\n## References\n\n")
	b.WriteString(referencesIntro)
	b.WriteString("\n\n")

	for i, ref := range references {
		title := cmp.Or(extract.Normalize(ref.Title), ref.URL)
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, escapeLinkText(title), ref.URL)
	}

	return strings.TrimRight(b.String(), "\n")
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
