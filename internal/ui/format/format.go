package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders dashboard numbers with the grouping and decimal
// separators of a locale.
type Formatter struct {
	printer  *message.Printer
	currency string
	tag      language.Tag
}

func New(locale, currency string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Formatter{
		printer:  message.NewPrinter(tag),
		currency: strings.TrimSpace(currency),
		tag:      tag,
	}, nil
}

// Locale returns the BCP 47 tag, for the page's lang attribute.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

func (f *Formatter) Currency(v float64) string {
	amount := f.Decimal(v)
	if f.currency == "" {
		return amount
	}
	return f.currency + " " + amount
}

func (f *Formatter) Decimal(v float64) string {
	return f.printer.Sprintf("%.2f", v)
}

func (f *Formatter) Integer(n int) string {
	return f.printer.Sprintf("%d", n)
}
