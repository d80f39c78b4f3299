package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(`<?xml version="1.0"?><w:document><w:body>` + body + `</w:body></w:document>`))
	w, err = zw.Create("[Content_Types].xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(`<Types/>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pdfDoc(t *testing.T, lines ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	for _, l := range lines {
		doc.Cell(0, 10, l)
		doc.Ln(10)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestText_DOCX(t *testing.T) {
	data := docx(t, `<w:p><w:r><w:t>Cells &amp; tissues</w:t></w:r></w:p><w:p></w:p><w:p></w:p><w:p><w:r><w:t>Mitosis</w:t></w:r></w:p>`)
	got, err := Text(MIMEDOCX, data)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "Cells & tissues\n\nMitosis" {
		t.Fatalf("got %q", got)
	}
}

func TestText_DOCXWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Create("other.xml")
	zw.Close()

	_, err := Text(MIMEDOCX, buf.Bytes())
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("got %v, want ErrNoText", err)
	}
}

func TestText_PlainText(t *testing.T) {
	got, err := Text("text/plain; charset=utf-8", []byte("  line one  \r\n\r\n\r\nline two\n"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "line one\n\nline two" {
		t.Fatalf("got %q", got)
	}

	if _, err := Text(MIMEText, []byte("  \n ")); !errors.Is(err, ErrNoText) {
		t.Fatalf("empty text: got %v", err)
	}
}

func TestText_PDF(t *testing.T) {
	data := pdfDoc(t, "Photosynthesis converts light", "into chemical energy")
	got, err := Text(MIMEPDF, data)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Photosynthesis") {
		t.Fatalf("extracted text %q does not contain the first line", got)
	}
	n, err := PageCount(data)
	if err != nil || n != 1 {
		t.Fatalf("PageCount = %d, %v", n, err)
	}
}

func TestText_Unsupported(t *testing.T) {
	_, err := Text("image/png", []byte{0x89, 'P', 'N', 'G'})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("got %v, want ErrUnsupportedType", err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", pdfDoc(t, "x"), MIMEPDF},
		{"docx", docx(t, "<w:p><w:r><w:t>x</w:t></w:r></w:p>"), MIMEDOCX},
		{"text", []byte("just some notes\n"), MIMEText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Fatalf("Detect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Krebs cycle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := File(path)
	if err != nil || got != "Krebs cycle" {
		t.Fatalf("File = %q, %v", got, err)
	}
}
