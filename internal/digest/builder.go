// Package digest renders an analysis response for people to read.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

// Builder renders blueprints as HTML and Markdown
type Builder struct {
	template *template.Template
}

// New creates a new blueprint builder
func New() (*Builder, error) {
	tmpl, err := template.New("blueprint").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{template: tmpl}, nil
}

// Digest is one rendered blueprint
type Digest struct {
	Title     string
	HTMLBody  string
	Markdown  string
	CreatedAt time.Time
}

// pageData is the template data structure
type pageData struct {
	Title    string
	Profile  types.Profile
	Analysis types.StructuredAnalysis
	Meta     types.Meta
}

// Build renders resp
func (b *Builder) Build(resp *types.AnalyzeResponse) (*Digest, error) {
	if resp == nil {
		return nil, fmt.Errorf("no analysis to render")
	}

	data := pageData{
		Title:    fmt.Sprintf("Style blueprint: %s (@%s)", resp.Profile.DisplayName, resp.Profile.Handle),
		Profile:  resp.Profile,
		Analysis: resp.Analysis,
		Meta:     resp.Meta,
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Digest{
		Title:     data.Title,
		HTMLBody:  htmlBuf.String(),
		Markdown:  buildMarkdown(data),
		CreatedAt: time.Now(),
	}, nil
}

// WriteHTML saves the HTML rendering under dir and returns its path
func (d *Digest) WriteHTML(dir, handle string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.html", handle, d.CreatedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(d.HTMLBody), 0644); err != nil {
		return "", fmt.Errorf("failed to write blueprint: %w", err)
	}
	return path, nil
}

func buildMarkdown(data pageData) string {
	var buf bytes.Buffer
	a := data.Analysis

	fmt.Fprintf(&buf, "# %s\n\n", data.Title)
	if data.Profile.Bio != "" {
		fmt.Fprintf(&buf, "> %s\n\n", data.Profile.Bio)
	}
	if data.Meta.Degraded {
		buf.WriteString("_Demo data: live analysis was unavailable._\n\n")
	}

	buf.WriteString("## Style snapshot\n\n")
	fmt.Fprintf(&buf, "- **Tone:** %s\n", a.StyleSnapshot.Tone)
	fmt.Fprintf(&buf, "- **Typical length:** %s\n", a.StyleSnapshot.TypicalLength)
	fmt.Fprintf(&buf, "- **Emoji usage:** %s\n", a.StyleSnapshot.EmojiUsage)
	fmt.Fprintf(&buf, "- **Formatting:** %s\n\n", a.StyleSnapshot.FormattingHabits)

	writeList(&buf, "Core themes", a.Themes)
	writeList(&buf, "Pushes", a.Beliefs.Pushes)
	writeList(&buf, "Avoids", a.Beliefs.Avoids)
	writeList(&buf, "Tweet formulas", a.Formulas)

	buf.WriteString("## Why it works\n\n")
	fmt.Fprintf(&buf, "- **Hooks:** %s\n", a.Rationale.Hooks)
	fmt.Fprintf(&buf, "- **Psychology:** %s\n", a.Rationale.Psychology)
	fmt.Fprintf(&buf, "- **Audience:** %s\n\n", a.Rationale.AudienceFit)

	writeList(&buf, "Example posts", a.ExampleContent)

	fmt.Fprintf(&buf, "---\n%d posts analyzed · %s · %s\n", data.Meta.ItemCount, data.Meta.GeneratedAt, data.Meta.Disclaimer)
	return buf.String()
}

func writeList(buf *bytes.Buffer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(buf, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(buf, "- %s\n", strings.TrimSpace(item))
	}
	buf.WriteString("\n")
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 680px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        .profile { display: flex; align-items: center; gap: 12px; }
        .profile img { width: 56px; height: 56px; border-radius: 50%; }
        .name { font-weight: bold; color: #333; font-size: 20px; }
        .handle { color: #666; }
        .bio { color: #444; margin: 10px 0; }
        .demo { background: #fff4e5; color: #8a5300; padding: 6px 10px; border-radius: 6px; font-size: 13px; }
        h2 { color: #1da1f2; font-size: 16px; margin-top: 24px; }
        .tag { background: #e8f5fd; color: #1da1f2; padding: 2px 8px; border-radius: 12px; font-size: 12px; margin-right: 5px; display: inline-block; margin-bottom: 4px; }
        .example { border-left: 3px solid #1da1f2; padding: 6px 10px; margin: 8px 0; background: #fafafa; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <div class="profile">
            <img src="{{.Profile.AvatarURL}}" alt="">
            <div>
                <div class="name">{{.Profile.DisplayName}}</div>
                <div class="handle">@{{.Profile.Handle}}</div>
            </div>
        </div>
        {{if .Profile.Bio}}<div class="bio">{{.Profile.Bio}}</div>{{end}}
        {{if .Meta.Degraded}}<div class="demo">Demo data: live analysis was unavailable.</div>{{end}}

        <h2>Style snapshot</h2>
        <ul>
            <li><b>Tone:</b> {{.Analysis.StyleSnapshot.Tone}}</li>
            <li><b>Typical length:</b> {{.Analysis.StyleSnapshot.TypicalLength}}</li>
            <li><b>Emoji usage:</b> {{.Analysis.StyleSnapshot.EmojiUsage}}</li>
            <li><b>Formatting:</b> {{.Analysis.StyleSnapshot.FormattingHabits}}</li>
        </ul>

        <h2>Core themes</h2>
        <div>{{range .Analysis.Themes}}<span class="tag">{{.}}</span>{{end}}</div>

        <h2>Pushes</h2>
        <ul>{{range .Analysis.Beliefs.Pushes}}<li>{{.}}</li>{{end}}</ul>
        <h2>Avoids</h2>
        <ul>{{range .Analysis.Beliefs.Avoids}}<li>{{.}}</li>{{end}}</ul>

        <h2>Tweet formulas</h2>
        <ul>{{range .Analysis.Formulas}}<li>{{.}}</li>{{end}}</ul>

        <h2>Why it works</h2>
        <ul>
            <li><b>Hooks:</b> {{.Analysis.Rationale.Hooks}}</li>
            <li><b>Psychology:</b> {{.Analysis.Rationale.Psychology}}</li>
            <li><b>Audience:</b> {{.Analysis.Rationale.AudienceFit}}</li>
        </ul>

        <h2>Example posts</h2>
        {{range .Analysis.ExampleContent}}<div class="example">{{.}}</div>{{end}}

        <div class="footer">
            {{.Meta.ItemCount}} posts analyzed · {{.Meta.GeneratedAt}} · {{.Meta.Disclaimer}}
        </div>
    </div>
</body>
</html>`
