// Package extract pulls the structured answer out of free-form model output.
//
// Agents ask the model to reply with a small XML document such as
//
//	<weather_request><city>Tokyo</city><days>3</days></weather_request>
//
// Models wrap it in prose, fence it in markdown or leave characters unescaped,
// so Extract tries progressively more tolerant strategies before giving up.
package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"
)

// maxSnippet bounds the raw text kept in a ParseError.
const maxSnippet = 200

// ErrorField is the leaf a model uses to report it could not comply.
const ErrorField = "error"

// ParseError means no usable <root> element could be found in the output.
type ParseError struct {
	Root    string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("no valid <%s> element in model output", e.Root)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + fmt.Sprintf(" (output: %q)", e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError means the element was found but a required leaf was absent or empty.
type MissingFieldError struct {
	Root  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("<%s> has no <%s> value", e.Root, e.Field)
}

// Fields holds the trimmed text of the first-level leaves of an extracted element.
type Fields struct {
	root   string
	values map[string]string
}

// Has reports whether the leaf was present, even if empty.
func (f Fields) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Get returns the leaf text, or "" when absent.
func (f Fields) Get(name string) string {
	return f.values[name]
}

// String returns the leaf text, or def when absent or empty.
func (f Fields) String(name, def string) string {
	if v := f.values[name]; v != "" {
		return v
	}
	return def
}

// Require returns the leaf text or a *MissingFieldError.
func (f Fields) Require(name string) (string, error) {
	if v := f.values[name]; v != "" {
		return v, nil
	}
	return "", &MissingFieldError{Root: f.root, Field: name}
}

// Err returns the model-reported <error> text, or "" when there is none.
func (f Fields) Err() string {
	if !f.Has(ErrorField) {
		return ""
	}
	if msg := f.values[ErrorField]; msg != "" {
		return msg
	}
	return "unspecified error"
}

var reFence = regexp.MustCompile("```(?:xml|XML)?")

// Extract locates the <root> element in raw and returns its leaves.
//
// Strategies, in order: the first <root>...</root> span decoded as XML;
// the whole output with markdown fences removed decoded as XML; a lenient
// regex scan of the span for <leaf>text</leaf> pairs, which tolerates
// unescaped '&' and '<' inside commands. A *ParseError is returned when
// every strategy fails.
func Extract(raw, root string) (Fields, error) {
	span := findSpan(raw, root)
	if span != "" {
		if f, err := decode(span, root); err == nil {
			return f, nil
		}
	}

	cleaned := strings.TrimSpace(reFence.ReplaceAllString(raw, ""))
	f, xmlErr := decode(cleaned, root)
	if xmlErr == nil {
		return f, nil
	}

	if span == "" {
		span = findSpan(cleaned, root)
	}
	if span != "" {
		if f, ok := repair(span, root); ok {
			return f, nil
		}
	}

	return Fields{}, &ParseError{Root: root, Snippet: snippet(raw), Err: xmlErr}
}

// findSpan returns the text from the first <root> to the last </root>, or "".
func findSpan(s, root string) string {
	re := spanPattern(root)
	return re.FindString(s)
}

// spanPatterns caches one compiled pattern per root element name.
var spanPatterns sync.Map

func spanPattern(root string) *regexp.Regexp {
	if re, ok := spanPatterns.Load(root); ok {
		return re.(*regexp.Regexp)
	}
	q := regexp.QuoteMeta(root)
	re, _ := spanPatterns.LoadOrStore(root, regexp.MustCompile(`(?s)<`+q+`(?:\s[^>]*)?>.*</`+q+`\s*>`))
	return re.(*regexp.Regexp)
}

// decode parses s as an XML document whose document element must be root.
func decode(s, root string) (Fields, error) {
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = true

	f := Fields{root: root, values: make(map[string]string)}
	depth := 0
	var leaf string
	var text bytes.Buffer
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Fields{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				if sawRoot {
					return Fields{}, errors.New("multiple document elements")
				}
				if t.Name.Local != root {
					return Fields{}, fmt.Errorf("document element is <%s>, want <%s>", t.Name.Local, root)
				}
				sawRoot = true
			case depth == 2:
				leaf = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			} else if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return Fields{}, errors.New("text outside document element")
			}
		case xml.EndElement:
			if depth == 2 {
				if _, dup := f.values[leaf]; !dup {
					f.values[leaf] = strings.TrimSpace(text.String())
				}
			}
			depth--
		}
	}
	if !sawRoot {
		return Fields{}, fmt.Errorf("no <%s> element", root)
	}
	return f, nil
}

var reLeaf = regexp.MustCompile(`(?s)<([A-Za-z_][A-Za-z0-9_.-]*)\s*>(.*?)</([A-Za-z_][A-Za-z0-9_.-]*)\s*>`)

// repair scans the inside of a span for <leaf>text</leaf> pairs without
// requiring the text to be well-formed XML.
func repair(span, root string) (Fields, bool) {
	inner := span
	if i := strings.Index(inner, ">"); i >= 0 {
		inner = inner[i+1:]
	}
	if i := strings.LastIndex(inner, "</"+root); i >= 0 {
		inner = inner[:i]
	}

	f := Fields{root: root, values: make(map[string]string)}
	for _, m := range reLeaf.FindAllStringSubmatch(inner, -1) {
		name, body, closing := m[1], m[2], m[3]
		if name != closing || name == root {
			continue
		}
		if _, dup := f.values[name]; dup {
			continue
		}
		f.values[name] = strings.TrimSpace(html.UnescapeString(body))
	}
	if len(f.values) == 0 {
		return Fields{}, false
	}
	return f, true
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSnippet {
		return s
	}
	cut := maxSnippet
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
