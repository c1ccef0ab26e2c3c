package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/extract"
)

const descriptionLength = 300

// Generator renders a source's optimized articles as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(source database.Source, articles []database.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", source.Label, 4)
	g.writeElement(&buf, "link", source.IndexURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Optimized articles from %s", source.IndexURL), 4)

	selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, source.Name)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = g.itemDate(articles[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Article-Comb/%s", g.version), 4)

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(article.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", article.Title, 6)
	g.writeElement(buf, "link", article.URL, 6)
	g.writeElement(buf, "description", extract.Truncate(extract.Normalize(article.Content), descriptionLength), 6)

	if article.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(article.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", g.itemDate(article).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", article.Author, 6)

	for _, tag := range article.Tags {
		g.writeElement(buf, "category", tag, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) itemDate(article database.Article) time.Time {
	switch {
	case article.OptimizedAt != nil:
		return *article.OptimizedAt
	case article.PublishedAt != nil:
		return *article.PublishedAt
	default:
		return article.CreatedAt
	}
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
