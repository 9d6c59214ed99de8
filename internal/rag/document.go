package rag

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// Document is an ingested text split along its Markdown headings.
type Document struct {
	// Frontmatter metadata (from YAML)
	Metadata map[string]any

	// Title from frontmatter or the first h1
	Title string

	Sections []Section
}

// Section is the text under one heading. Text before the first heading
// forms a section with an empty Path.
type Section struct {
	Path    string // Full path like "## Setup > ### Install"
	Content string
}

// ParseDocument strips YAML frontmatter and splits text by headings.
// Plain text yields a single section.
func ParseDocument(text string) Document {
	doc := Document{Metadata: make(map[string]any)}

	body := strings.ReplaceAll(text, "\r\n", "\n")
	if strings.HasPrefix(body, "---\n") {
		if end := strings.Index(body[4:], "\n---"); end >= 0 {
			if err := yaml.Unmarshal([]byte(body[4:4+end]), &doc.Metadata); err != nil {
				// Malformed frontmatter is kept out of the index but otherwise ignored.
				doc.Metadata = make(map[string]any)
			}
			body = strings.TrimPrefix(body[4+end+4:], "\n")
		}
	}

	doc.Title = title(doc.Metadata, body)
	doc.Sections = sections(body)
	return doc
}

func title(meta map[string]any, body string) string {
	for _, key := range []string{"title", "name"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if m := h1Regex.FindStringSubmatch(body); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func sections(body string) []Section {
	var (
		out     []Section
		path    []string
		levels  []int
		current = Section{}
		content strings.Builder
	)

	flush := func() {
		current.Content = strings.TrimSpace(content.String())
		if current.Content != "" {
			out = append(out, current)
		}
		content.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for scanner.Scan() {
		line := scanner.Text()
		m := headingRegex.FindStringSubmatch(line)
		if m == nil {
			content.WriteString(line)
			content.WriteString("\n")
			continue
		}

		flush()
		level := len(m[1])
		for len(levels) > 0 && levels[len(levels)-1] >= level {
			path = path[:len(path)-1]
			levels = levels[:len(levels)-1]
		}
		path = append(path, m[1]+" "+strings.TrimSpace(m[2]))
		levels = append(levels, level)
		current = Section{Path: strings.Join(path, " > ")}
	}
	flush()

	return out
}

// embedText prefixes a chunk with its document title and heading path so
// the vector carries the chunk's position in the document.
func embedText(title, path, chunk string) string {
	var parts []string
	if title != "" {
		parts = append(parts, title)
	}
	if path != "" {
		parts = append(parts, path)
	}
	if len(parts) == 0 {
		return chunk
	}
	return strings.Join(parts, " > ") + "\n\n" + chunk
}
