package archchan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecodeRequestLangAndMessage(t *testing.T) {
	req, err := DecodeRequest("LANG:Turkish|MSG:hello", DefaultLanguage)
	if err != nil {
		t.Fatal(err)
	}
	if req.Language != "Turkish" || req.Text != "hello" {
		t.Errorf("got (%q, %q), want (Turkish, hello)", req.Language, req.Text)
	}
}

func TestDecodeRequestSplitsOnFirstSeparatorOnly(t *testing.T) {
	req, err := DecodeRequest("LANG:English|MSG:echo a |MSG: b | wc -l", "x")
	if err != nil {
		t.Fatal(err)
	}
	if req.Text != "echo a |MSG: b | wc -l" {
		t.Errorf("unexpected text %q", req.Text)
	}
}

func TestDecodeRequestMissingSeparator(t *testing.T) {
	req, err := DecodeRequest("  just text  ", "German")
	if !errors.Is(err, ErrMissingSeparator) {
		t.Fatalf("expected ErrMissingSeparator, got %v", err)
	}
	if req.Text != "just text" {
		t.Errorf("expected whole payload as text, got %q", req.Text)
	}
	if req.Language != "German" {
		t.Errorf("expected previous language to be kept, got %q", req.Language)
	}
}

func TestDecodeRequestMalformedLanguage(t *testing.T) {
	req, err := DecodeRequest("LNG:French|MSG:bonjour", "English")
	if !errors.Is(err, ErrMalformedLanguage) {
		t.Fatalf("expected ErrMalformedLanguage, got %v", err)
	}
	if req.Language != "English" || req.Text != "bonjour" {
		t.Errorf("got (%q, %q)", req.Language, req.Text)
	}
}

func TestDecodeRequestEmptyLanguageKeepsFallback(t *testing.T) {
	req, err := DecodeRequest("LANG:|MSG:hi", "Spanish")
	if err != nil {
		t.Fatal(err)
	}
	if req.Language != "Spanish" {
		t.Errorf("expected fallback language, got %q", req.Language)
	}
}

func TestRequestRoundTripWithNewlines(t *testing.T) {
	in := &Request{Language: "English", Text: "line one\nline two | with pipe"}
	frame := EncodeRequest(in)
	if strings.ContainsAny(frame, "\r\n") {
		t.Fatalf("encoded frame contains a line break: %q", frame)
	}
	out, err := DecodeRequest(frame, "")
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestRequestRoundTripWithBackslashes(t *testing.T) {
	tests := []string{
		`sed 's/\n/ /g' file`,
		`dir C:\new\path`,
		`a\pb`,
		`printf '%s\r\n' x | tr -d '\\'`,
	}
	for _, text := range tests {
		in := &Request{Language: "English", Text: text}
		out, err := DecodeRequest(EncodeRequest(in), "")
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != text {
			t.Errorf("round trip of %q gave %q", text, out.Text)
		}
	}
}

func TestDecodeRequestKeepsPipeEscapeLiteral(t *testing.T) {
	req, err := DecodeRequest(`LANG:English|MSG:a\pb | c`, "")
	if err != nil {
		t.Fatal(err)
	}
	if req.Text != `a\pb | c` {
		t.Errorf("expected request text to keep \\p, got %q", req.Text)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	tests := []Response{
		{Type: "FRIEND_CHAT", Content: "Linux Chan: hi", Voice: "hi"},
		{Type: "LINUX_CMD", Content: "Command: `ls | wc -l`", Voice: "count", Output: "Command executed successfully:\n3"},
		{Type: "WEATHER", Content: `path C:\temp |CONTENT: fake`, Voice: "|VOICE_TEXT:", Output: "|LINUX_OUTPUT:\r\n"},
		{Type: "ERROR"},
	}
	for _, tt := range tests {
		frame := EncodeResponse(&tt)
		if strings.ContainsAny(frame, "\r\n") {
			t.Errorf("encoded frame contains a line break: %q", frame)
		}
		got, err := DecodeResponse(frame)
		if err != nil {
			t.Errorf("DecodeResponse(%q): %v", frame, err)
			continue
		}
		if *got != tt {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, tt)
		}
	}
}

func TestDecodeResponseMissingDelimiter(t *testing.T) {
	tests := []string{
		"",
		"CONTENT:x",
		"TYPE:A",
		"TYPE:A|CONTENT:b",
		"TYPE:A|CONTENT:b|VOICE_TEXT:c",
	}
	for _, frame := range tests {
		if _, err := DecodeResponse(frame); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("DecodeResponse(%q): expected ErrMalformedResponse, got %v", frame, err)
		}
	}
}

func TestUnescapeKeepsUnknownSequences(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a\tb`, `a\tb`},
		{`trailing\`, `trailing\`},
		{`\\n`, `\n`},
		{`a\pb`, `a|b`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Unescape(tt.input); got != tt.expected {
			t.Errorf("Unescape(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// chunkReader returns at most n bytes per Read to simulate split TCP segments.
type chunkReader struct {
	data []byte
	n    int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(r.n, len(p), len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestFrameReaderSplitReads(t *testing.T) {
	stream := "LANG:English|MSG:first\nLANG:English|MSG:second\n"
	fr := NewFrameReader(&chunkReader{data: []byte(stream), n: 3}, 0)

	for _, want := range []string{"LANG:English|MSG:first", "LANG:English|MSG:second"} {
		got, err := fr.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameReaderCoalescedFramesAndCRLF(t *testing.T) {
	fr := NewFrameReader(strings.NewReader("a\r\nb\nc\n"), 0)
	var got []string
	for {
		frame, err := fr.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frame)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("unexpected frames %q", got)
	}
}

func TestFrameReaderRejectsOversizedFrame(t *testing.T) {
	fr := NewFrameReader(strings.NewReader(strings.Repeat("x", 100)+"\n"), 16)
	if _, err := fr.ReadFrame(); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("expected bufio.ErrTooLong, got %v", err)
	}
}

func TestWriteFrameAppendsTerminator(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, "TYPE:ERROR|CONTENT:|VOICE_TEXT:|LINUX_OUTPUT:"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "TYPE:ERROR|CONTENT:|VOICE_TEXT:|LINUX_OUTPUT:\n" {
		t.Errorf("unexpected frame %q", buf.String())
	}
}
