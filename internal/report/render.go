package report

import (
	"bytes"
	"html/template"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.5;
            color: #1a1a1a;
            max-width: 960px;
            margin: 0 auto;
            padding: 2rem 1rem;
        }
        code {
            font-family: 'SF Mono', Monaco, Consolas, monospace;
            background-color: #f5f5f5;
            padding: 0.1em 0.3em;
            border-radius: 3px;
        }
        table { width: 100%; border-collapse: collapse; margin: 1em 0; }
        th, td { border: 1px solid #e0e0e0; padding: 0.4em 0.8em; text-align: left; }
        th { background-color: #f5f5f5; }
        blockquote { margin: 1em 0; padding: 0.5em 1em; border-left: 4px solid #d9534f; }
    </style>
</head>
<body>
    <article>
        {{.Content}}
    </article>
</body>
</html>`

var document = template.Must(template.New("report").Parse(documentTemplate))

type documentData struct {
	Title   string
	Content template.HTML
}

// HTML renders the Markdown report as a standalone, sanitized HTML document.
func (r *Report) HTML() []byte {
	var buf bytes.Buffer
	err := document.Execute(&buf, documentData{
		Title:   r.Subject(),
		Content: renderMarkdown(r.Markdown()),
	})
	if err != nil {
		return []byte("<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error rendering report</h1></body></html>")
	}
	return buf.Bytes()
}

// renderMarkdown converts markdown to HTML. Scenario names and failure
// messages come from the target page, so the output is sanitized.
func renderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(s))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	out := markdown.Render(doc, renderer)

	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(out))
}
