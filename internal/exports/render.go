package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatText     = "txt"

	TemplateStandard     = "standard"
	TemplateAcademic     = "academic"
	TemplateBusiness     = "business"
	TemplatePresentation = "presentation"
)

var contentTypes = map[string]string{
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatJSON:     "application/json",
	FormatCSV:      "text/csv; charset=utf-8",
	FormatText:     "text/plain; charset=utf-8",
}

// headings holds the section titles each template uses.
type headings struct {
	summary   string
	keyPoints string
	metadata  string
}

var templates = map[string]headings{
	TemplateStandard:     {summary: "Summary", keyPoints: "Key Points", metadata: "Details"},
	TemplateAcademic:     {summary: "Abstract", keyPoints: "Key Findings", metadata: "Source Information"},
	TemplateBusiness:     {summary: "Executive Summary", keyPoints: "Key Takeaways", metadata: "Document Details"},
	TemplatePresentation: {summary: "Overview", keyPoints: "Highlights", metadata: "Notes"},
}

// ContentType returns the MIME type stored alongside an export.
func ContentType(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Render produces the export document for format.
func Render(format, template string, content Content, at time.Time) ([]byte, error) {
	h, ok := templates[template]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q", ErrInvalidInput, template)
	}
	switch format {
	case FormatMarkdown:
		return renderMarkdown(h, content, at), nil
	case FormatText:
		return renderText(h, content, at), nil
	case FormatJSON:
		return renderJSON(template, content, at)
	case FormatCSV:
		return renderCSV(content, at)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
	}
}

func renderMarkdown(h headings, content Content, at time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", content.Title)
	fmt.Fprintf(&b, "_Exported %s_\n\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## %s\n\n%s\n", h.summary, strings.TrimSpace(content.Summary))
	if len(content.KeyPoints) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", h.keyPoints)
		for _, point := range content.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	if keys := metadataKeys(content.Metadata); len(keys) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", h.metadata)
		for _, key := range keys {
			fmt.Fprintf(&b, "- **%s**: %s\n", key, metadataValue(content.Metadata[key]))
		}
	}
	return b.Bytes()
}

func renderText(h headings, content Content, at time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n%s\n", content.Title, strings.Repeat("=", len(content.Title)))
	fmt.Fprintf(&b, "Exported %s\n\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n%s\n", strings.ToUpper(h.summary), strings.TrimSpace(content.Summary))
	if len(content.KeyPoints) > 0 {
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(h.keyPoints))
		for i, point := range content.KeyPoints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, point)
		}
	}
	if keys := metadataKeys(content.Metadata); len(keys) > 0 {
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(h.metadata))
		for _, key := range keys {
			fmt.Fprintf(&b, "%s: %s\n", key, metadataValue(content.Metadata[key]))
		}
	}
	return b.Bytes()
}

func renderJSON(template string, content Content, at time.Time) ([]byte, error) {
	doc := struct {
		Title      string         `json:"title"`
		Template   string         `json:"template"`
		Summary    string         `json:"summary"`
		KeyPoints  []string       `json:"keyPoints"`
		Metadata   map[string]any `json:"metadata"`
		ExportedAt time.Time      `json:"exportedAt"`
	}{
		Title:      content.Title,
		Template:   template,
		Summary:    content.Summary,
		KeyPoints:  content.KeyPoints,
		Metadata:   content.Metadata,
		ExportedAt: at.UTC(),
	}
	if doc.KeyPoints == nil {
		doc.KeyPoints = []string{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// renderCSV writes one field per row so spreadsheets keep long summaries intact.
func renderCSV(content Content, at time.Time) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	rows := [][]string{
		{"field", "value"},
		{"title", content.Title},
		{"summary", content.Summary},
	}
	for i, point := range content.KeyPoints {
		rows = append(rows, []string{fmt.Sprintf("keyPoint.%d", i+1), point})
	}
	for _, key := range metadataKeys(content.Metadata) {
		rows = append(rows, []string{"metadata." + key, metadataValue(content.Metadata[key])})
	}
	rows = append(rows, []string{"exportedAt", at.UTC().Format(time.RFC3339)})
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func metadataKeys(metadata map[string]any) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func metadataValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
