package pdftext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrStop may be returned from an item callback to end the stream early.
// Sources treat it as a clean end of stream.
var ErrStop = errors.New("stop parsing")

// Item is a single parse event. Page > 0 marks the start of that page and
// Pages then carries the document's page count; Text carries the text of one
// text-show operation. Either or both may be set.
type Item struct {
	Page  int
	Pages int
	Text  string
}

// Source streams parse events for a document. Lets us stub the PDF reader in tests.
type Source interface {
	Items(ctx context.Context, path string, fn func(Item) error) error
}

// LedongthucSource reads PDFs with github.com/ledongthuc/pdf. For each page it
// emits a page marker, then one item per text-show operation in content
// stream order. The strings of a TJ array form a single item.
type LedongthucSource struct{}

func (LedongthucSource) Items(ctx context.Context, path string, fn func(Item) error) (err error) {
	// the pdf package panics on some malformed cross-reference tables and content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(Item{Page: i, Pages: total}); err != nil {
			return stopOrErr(err)
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, text := range textShows(p) {
			if err := fn(Item{Text: text}); err != nil {
				return stopOrErr(err)
			}
		}
	}
	return nil
}

// textShows decodes the operands of every Tj, TJ, ' and " operator on p.
func textShows(p pdf.Page) []string {
	encoders := make(map[string]pdf.TextEncoding)
	for _, name := range p.Fonts() {
		encoders[name] = p.Font(name).Encoder()
	}

	var (
		out []string
		enc pdf.TextEncoding = rawEncoding{}
	)
	show := func(s string) {
		if s = enc.Decode(s); s != "" {
			out = append(out, s)
		}
	}
	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tf":
			enc = rawEncoding{}
			if len(args) == 2 {
				if e, ok := encoders[args[0].Name()]; ok {
					enc = e
				}
			}
		case "Tj", "'":
			if len(args) == 1 {
				show(args[0].RawString())
			}
		case "\"":
			if len(args) == 3 {
				show(args[2].RawString())
			}
		case "TJ":
			if len(args) != 1 {
				return
			}
			var raw strings.Builder
			for j := 0; j < args[0].Len(); j++ {
				if v := args[0].Index(j); v.Kind() == pdf.String {
					raw.WriteString(v.RawString())
				}
			}
			show(raw.String())
		}
	})
	return out
}

// rawEncoding passes code points through for fonts the page does not declare.
type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string { return raw }

func stopOrErr(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
