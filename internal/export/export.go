// Package export renders chat transcripts and summaries as downloadable
// text and PDF documents.
package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"

	"smartstudy/internal/models"
)

var (
	nonASCII   = regexp.MustCompile(`[^\x00-\x7F]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanText strips non-ASCII characters, collapses whitespace and trims.
func CleanText(s string) string {
	s = nonASCII.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Transcript renders messages as "You: ..." / "Bot: ..." entries separated
// by a blank line.
func Transcript(messages []models.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		who := "Bot"
		if m.Sender == models.SenderUser {
			who = "You"
		}
		parts = append(parts, who+": "+CleanText(m.Text))
	}
	return strings.Join(parts, "\n\n")
}

// page layout in millimetres, A4 portrait
const (
	pageHeight   = 297.0
	bottomMargin = 10.0
	fontSize     = 12.0
)

type layout struct {
	x, top, width, lineHeight float64
}

var (
	transcriptLayout = layout{x: 10, top: 10, width: 180, lineHeight: 5}
	summaryLayout    = layout{x: 10, top: 20, width: 190, lineHeight: 10}
)

// TranscriptPDF renders the transcript as a paginated PDF.
func TranscriptPDF(messages []models.ChatMessage) ([]byte, error) {
	return render(Transcript(messages), transcriptLayout)
}

// SummaryPDF renders summary text as a paginated PDF.
func SummaryPDF(summary string) ([]byte, error) {
	return render(summary, summaryLayout)
}

func render(text string, l layout) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(false, bottomMargin)
	doc.SetFont("Helvetica", "", fontSize)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	y := l.top
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		// SplitText measures runes against the font's 256-entry width
		// table, so it gets the cp1252 bytes one rune per byte.
		lines := doc.SplitText(widen(tr(para)), l.width)
		if len(lines) == 0 {
			lines = []string{""}
		}
		for _, line := range lines {
			if y > pageHeight-bottomMargin {
				doc.AddPage()
				y = l.top
			}
			doc.Text(l.x, y, narrow(line))
			y += l.lineHeight
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// widen maps each byte of a single-byte encoded string to the rune of the
// same value; narrow reverses it.
func widen(s string) string {
	r := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		r[i] = rune(s[i])
	}
	return string(r)
}

func narrow(s string) string {
	rs := []rune(s)
	b := make([]byte, len(rs))
	for i, r := range rs {
		b[i] = byte(r)
	}
	return string(b)
}
