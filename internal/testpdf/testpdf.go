// Package testpdf builds small text-only PDF documents for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Build returns a PDF with one page per element of pages. Each string of a
// page is drawn as its own line, top to bottom, in Helvetica.
func Build(pages ...[]string) []byte {
	contents := make([]string, len(pages))
	for i, lines := range pages {
		var content strings.Builder
		content.WriteString("BT\n/F1 12 Tf\n")
		for j, line := range lines {
			fmt.Fprintf(&content, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 720-16*j, escape(line))
		}
		content.WriteString("ET")
		contents[i] = content.String()
	}
	return BuildContent(contents...)
}

// BuildContent returns a PDF whose pages carry the given raw content streams.
// Font /F1 (Helvetica) is available to every page.
func BuildContent(contents ...string) []byte {
	var objs []string

	// 1: catalog, 2: page tree, 3: font, then page/content pairs
	kids := make([]string, len(contents))
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, stream := range contents {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// Write stores Build(pages...) as dir/name and returns the full path.
func Write(tb testing.TB, dir, name string, pages ...[]string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		tb.Fatalf("write test pdf: %v", err)
	}
	return path
}

// WriteContent stores BuildContent(contents...) as dir/name and returns the full path.
func WriteContent(tb testing.TB, dir, name string, contents ...string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildContent(contents...), 0o644); err != nil {
		tb.Fatalf("write test pdf: %v", err)
	}
	return path
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
