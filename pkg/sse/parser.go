package sse

import (
	"context"
	"strings"
	"unicode"
)

// prefixes are tested in order; the first match wins.
var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{":", KindComment},
	{"data:", KindData},
	{"event:", KindEvent},
	{"id:", KindID},
	{"retry:", KindRetry},
}

// ParseLine classifies one terminator-stripped line. It reports false for
// lines that carry no known field, including blank lines.
func ParseLine(line string) (Fragment, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return Fragment{
				Kind:  p.kind,
				Value: strings.TrimLeftFunc(rest, unicode.IsSpace),
			}, true
		}
	}
	return Fragment{}, false
}

// Parser turns the lines of a LineReader into fragments.
type Parser struct {
	lines    *LineReader
	observer Observer
	ended    bool
}

// NewParser returns a Parser reading lines from lines. A nil observer is
// allowed.
func NewParser(lines *LineReader, observer Observer) *Parser {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Parser{
		lines:    lines,
		observer: observer,
	}
}

// Next returns the next fragment. Unrecognized lines are skipped silently,
// apart from being reported to the observer. Next returns io.EOF at the end
// of the input and forwards any other error once.
func (p *Parser) Next(ctx context.Context) (Fragment, error) {
	for {
		line, err := p.lines.Next(ctx)
		if err != nil {
			if !p.ended {
				p.ended = true
				if rest := p.lines.Discarded(); len(rest) > 0 {
					p.observer.PartialLineDiscarded(rest)
				}
			}
			return Fragment{}, err
		}

		if f, ok := ParseLine(line); ok {
			p.observer.FragmentParsed(f)
			return f, nil
		}

		p.observer.LineSkipped(line)
	}
}
