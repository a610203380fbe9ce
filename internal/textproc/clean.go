package textproc

import (
	"regexp"
	"strings"
)

// No markdown-stripping or sentence-boundary library exists anywhere in the
// corpus this engine was grown from, so clean and split are hand-rolled
// against the stdlib regexp/strings packages. See DESIGN.md.

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode      = regexp.MustCompile("`[^`\n]+`")
	atxHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	setextHeading   = regexp.MustCompile(`(?m)^[^\n]+\n(=+|-+)\s*$`)
	imageLink       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	link            = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldItalic      = regexp.MustCompile(`\*\*\*([^*_]+)\*\*\*|\*\*([^*_]+)\*\*|\*([^*_]+)\*|___([^*_]+)___|__([^*_]+)__|_([^*_]+)_`)
	htmlTag         = regexp.MustCompile(`(?s)<[^>]+>`)
	listMarker      = regexp.MustCompile(`^\s*([-*+]|\d+\.)\s+`)
	blockquote      = regexp.MustCompile(`(?m)^\s*>\s?`)
	tableRule       = regexp.MustCompile(`^\s*\|?[\s:|-]+\|[\s:|-]*$`)
	multiBlankLine  = regexp.MustCompile(`\n{3,}`)
	multiSpace      = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips markdown formatting from text, leaving prose suitable for
// sentence segmentation. It is intentionally lossy: formatting is discarded,
// not transliterated. List items are promoted to sentences (a terminal
// period is appended when missing) and table rows become comma-joined
// cell text.
func Clean(text string) string {
	s := text

	s = fencedCodeBlock.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Trim(m, "`")
	})
	s = setextHeading.ReplaceAllStringFunc(s, func(m string) string {
		i := strings.IndexByte(m, '\n')
		if i < 0 {
			return m
		}
		return m[:i]
	})
	s = atxHeading.ReplaceAllString(s, "")
	s = imageLink.ReplaceAllString(s, "$1")
	s = link.ReplaceAllString(s, "$1")
	s = boldItalic.ReplaceAllString(s, "${1}${2}${3}${4}${5}${6}")
	s = htmlTag.ReplaceAllString(s, "")
	s = blockquote.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		switch {
		case tableRule.MatchString(ln):
			lines[i] = ""
		case strings.Contains(ln, "|"):
			lines[i] = joinTableRow(ln)
		case listMarker.MatchString(ln):
			item := strings.TrimSpace(listMarker.ReplaceAllString(ln, ""))
			if item != "" && !hasTerminator(item) {
				item += "."
			}
			lines[i] = item
		case strings.HasPrefix(ln, "    ") || strings.HasPrefix(ln, "\t"):
			// Indented code block: dropped like fenced ones.
			lines[i] = ""
		default:
			lines[i] = ln
		}
	}
	s = strings.Join(lines, "\n")

	s = multiSpace.ReplaceAllString(s, " ")
	s = multiBlankLine.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// joinTableRow turns "| a | b |" into "a, b".
func joinTableRow(ln string) string {
	var cells []string
	for _, cell := range strings.Split(ln, "|") {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return strings.Join(cells, ", ")
}
