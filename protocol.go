package archchan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frame prefixes and field delimiters.
const (
	langPrefix    = "LANG:"
	msgSeparator  = "|MSG:"
	typePrefix    = "TYPE:"
	contentSep    = "|CONTENT:"
	voiceSep      = "|VOICE_TEXT:"
	outputSep     = "|LINUX_OUTPUT:"
	frameTerm     = '\n'
	minFrameBytes = 4096
)

// DefaultMaxFrameBytes bounds a single frame read from the wire.
const DefaultMaxFrameBytes = 1 << 20

var (
	// ErrMissingSeparator means a request frame had no |MSG: separator.
	// The decoded request still carries the whole payload as text.
	ErrMissingSeparator = errors.New("request frame has no |MSG: separator")
	// ErrMalformedLanguage means the part before |MSG: did not start with LANG:.
	ErrMalformedLanguage = errors.New("request frame has malformed LANG: prefix")
	// ErrMalformedResponse means a response frame is missing a delimiter.
	ErrMalformedResponse = errors.New("malformed response frame")
)

// Field values are escaped so that a frame never contains a raw line break
// and response fields never contain a raw '|'.
var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	"|", `\p`,
)

// Request text is split on the first |MSG: only, so a raw '|' is safe there
// and \p is not an escape.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
)

// Escape encodes a field value for the wire.
func Escape(s string) string {
	return fieldEscaper.Replace(s)
}

// Unescape reverses Escape. Unknown escape sequences are kept verbatim.
func Unescape(s string) string {
	return unescape(s, true)
}

func unescape(s string, pipe bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'p':
			if !pipe {
				sb.WriteByte(c)
				continue
			}
			sb.WriteByte('|')
		default:
			sb.WriteByte(c)
			continue
		}
		i++
	}
	return sb.String()
}

// EncodeRequest renders a request frame without the line terminator.
func EncodeRequest(req *Request) string {
	return langPrefix + Escape(req.Language) + msgSeparator + textEscaper.Replace(req.Text)
}

// DecodeRequest parses a request frame.
//
// The frame is split on the first |MSG: only, so the user text may contain
// further '|' characters. The text is in escaped form: a literal backslash
// is sent as \\, a line feed as \n and a carriage return as \r. Any other
// backslash sequence, \p included, is kept as written. fallbackLanguage is used when the frame carries no
// usable language. A non-nil error is informational: the returned request is
// always usable.
func DecodeRequest(frame, fallbackLanguage string) (*Request, error) {
	frame = strings.TrimRight(frame, "\r\n")
	req := &Request{Language: fallbackLanguage}

	head, body, found := strings.Cut(frame, msgSeparator)
	if !found {
		req.Text = strings.TrimSpace(unescape(frame, false))
		return req, ErrMissingSeparator
	}
	req.Text = strings.TrimSpace(unescape(body, false))

	lang, ok := strings.CutPrefix(head, langPrefix)
	if !ok {
		return req, fmt.Errorf("%w: %q", ErrMalformedLanguage, head)
	}
	if lang = strings.TrimSpace(Unescape(lang)); lang != "" {
		req.Language = lang
	}
	return req, nil
}

// EncodeResponse renders a response frame without the line terminator.
func EncodeResponse(resp *Response) string {
	var sb strings.Builder
	sb.WriteString(typePrefix)
	sb.WriteString(Escape(resp.Type))
	sb.WriteString(contentSep)
	sb.WriteString(Escape(resp.Content))
	sb.WriteString(voiceSep)
	sb.WriteString(Escape(resp.Voice))
	sb.WriteString(outputSep)
	sb.WriteString(Escape(resp.Output))
	return sb.String()
}

// DecodeResponse parses a response frame, scanning delimiters left to right.
func DecodeResponse(frame string) (*Response, error) {
	frame = strings.TrimRight(frame, "\r\n")

	rest, ok := strings.CutPrefix(frame, typePrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, typePrefix)
	}
	typ, rest, ok := strings.Cut(rest, contentSep)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, contentSep)
	}
	content, rest, ok := strings.Cut(rest, voiceSep)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, voiceSep)
	}
	voice, output, ok := strings.Cut(rest, outputSep)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, outputSep)
	}

	return &Response{
		Type:    Unescape(typ),
		Content: Unescape(content),
		Voice:   Unescape(voice),
		Output:  Unescape(output),
	}, nil
}

// FrameReader reads newline-terminated frames from a byte stream.
// It reassembles frames split across reads and separates frames that
// arrive coalesced in one read.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader creates a reader that rejects frames longer than maxFrameBytes.
// A non-positive limit selects DefaultMaxFrameBytes.
func NewFrameReader(r io.Reader, maxFrameBytes int) *FrameReader {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(minFrameBytes, maxFrameBytes)), maxFrameBytes)
	return &FrameReader{scanner: scanner}
}

// ReadFrame returns the next frame without its terminator.
// It returns io.EOF when the stream ends cleanly and bufio.ErrTooLong for
// oversized frames.
func (fr *FrameReader) ReadFrame() (string, error) {
	if fr.scanner.Scan() {
		return fr.scanner.Text(), nil
	}
	if err := fr.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// WriteFrame writes one frame followed by the line terminator in a single write.
func WriteFrame(w io.Writer, frame string) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, frameTerm)
	_, err := w.Write(buf)
	return err
}
