// Package markdown converts extracted article HTML into Markdown for the
// scrape engine's default (non-rawBody) output mode. It is carried over
// directly from cleaner/markdown.go converter setup.
package markdown

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Converter wraps a goroutine-safe html-to-markdown Converter.
type Converter struct {
	conv *converter.Converter
}

// New builds a Converter configured with the base, commonmark, and table
// plugins: base strips script/style/iframe/noscript/head/meta/link noise,
// commonmark renders standard Markdown, table preserves tabular structure
// with minimal cell padding.
func New() *Converter {
	return &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Convert renders htmlContent as Markdown. domain resolves relative <a>/<img>
// URLs to absolute ones so the output is self-contained.
func (c *Converter) Convert(htmlContent, domain string) (string, error) {
	return c.conv.ConvertString(htmlContent, converter.WithDomain(domain))
}
