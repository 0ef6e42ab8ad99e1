package normalisers

import (
	"html"
	"strings"
)

// PlaintextNormaliser handles plain text and acts as the universal fallback.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) string {
	return collapseWhitespace(normaliseLineEndings(content))
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// MarkdownNormaliser strips markdown syntax that carries no meaning for
// similarity: heading markers, emphasis, link targets.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) string {
	content = normaliseLineEndings(content)

	var out strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, "# >")
		out.WriteString(trimmed)
		out.WriteString("\n")
	}
	content = out.String()

	for _, marker := range []string{"**", "__", "`", "*", "_"} {
		content = strings.ReplaceAll(content, marker, "")
	}

	// [text](url) -> text
	for {
		open := strings.Index(content, "](")
		if open == -1 {
			break
		}
		end := strings.Index(content[open:], ")")
		if end == -1 {
			break
		}
		content = content[:open+1] + content[open+end+1:]
	}
	content = strings.ReplaceAll(content, "[", "")
	content = strings.ReplaceAll(content, "]", "")

	return collapseWhitespace(content)
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// StorageFormatNormaliser extracts plain text from Confluence storage-format
// XHTML. Macro bodies wrapped in CDATA (code blocks, panels) are kept as
// text; layout macros, link metadata, and all other markup are dropped.
type StorageFormatNormaliser struct{}

func (n *StorageFormatNormaliser) Normalise(content string, mimeType string) string {
	content = unwrapCDATA(content)
	content = dropBlocks(content, "script")
	content = dropBlocks(content, "style")
	content = stripTags(content)
	content = html.UnescapeString(content)
	return collapseWhitespace(normaliseLineEndings(content))
}

func (n *StorageFormatNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *StorageFormatNormaliser) Priority() int {
	return 50
}

// Helpers shared by the normalisers

func normaliseLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func collapseWhitespace(content string) string {
	for strings.Contains(content, "  ") {
		content = strings.ReplaceAll(content, "  ", " ")
	}
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	var out strings.Builder
	for _, line := range strings.Split(content, "\n") {
		out.WriteString(strings.TrimSpace(line))
		out.WriteString("\n")
	}
	return strings.TrimSpace(out.String())
}

// unwrapCDATA replaces CDATA sections with their inner text so macro bodies
// survive tag stripping.
func unwrapCDATA(content string) string {
	const opener, closer = "<![CDATA[", "]]>"
	for {
		start := strings.Index(content, opener)
		if start == -1 {
			return content
		}
		end := strings.Index(content[start:], closer)
		if end == -1 {
			return content
		}
		inner := content[start+len(opener) : start+end]
		content = content[:start] + inner + content[start+end+len(closer):]
	}
}

// dropBlocks removes an element and everything inside it. Unclosed elements
// are dropped to the end of the input.
func dropBlocks(content, tagPrefix string) string {
	lower := strings.ToLower(content)
	openTag := "<" + strings.ToLower(tagPrefix)
	for {
		start := strings.Index(lower, openTag)
		if start == -1 {
			return content
		}
		closeTag := "</" + strings.ToLower(tagPrefix)
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			return content[:start]
		}
		rest := strings.Index(lower[start+end:], ">")
		if rest == -1 {
			return content[:start]
		}
		content = content[:start] + content[start+end+rest+1:]
		lower = strings.ToLower(content)
	}
}

// stripTags removes markup, replacing every tag with a space so adjacent
// block elements do not fuse into one word.
func stripTags(content string) string {
	var out strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			out.WriteRune(' ')
		case !inTag:
			out.WriteRune(r)
		}
	}
	return out.String()
}
