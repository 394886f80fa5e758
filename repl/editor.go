package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

const maxHistory = 200

// Editor is a raw-mode line editor with in-line cursor movement and a
// per-run history. It reads from /dev/tty so stdout can be redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State
	buf      []byte
	pos      int // cursor byte offset into buf

	history []string
	// histPos indexes history while browsing; len(history) means the live line.
	histPos int
	live    []byte
}

// NewEditor opens /dev/tty and switches it to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Editor{tty: tty, oldState: old}, nil
}

// Close restores the terminal and closes the tty.
func (e *Editor) Close() {
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Tty returns the terminal for prompts and replies.
func (e *Editor) Tty() *os.File {
	return e.tty
}

// ReadLine shows prompt and returns the entered line. Ctrl-D on an empty
// line returns io.EOF and Ctrl-C returns ErrInterrupt.
func (e *Editor) ReadLine(prompt string) (string, error) {
	e.buf = e.buf[:0]
	e.pos = 0
	e.histPos = len(e.history)
	e.redraw(prompt)

	var esc [3]byte
	for {
		var b [1]byte
		if _, err := e.tty.Read(b[:]); err != nil {
			return "", err
		}

		switch b[0] {
		case 3: // Ctrl-C
			fmt.Fprint(e.tty, "\r\n")
			return "", ErrInterrupt

		case 4: // Ctrl-D
			if len(e.buf) == 0 {
				fmt.Fprint(e.tty, "\r\n")
				return "", io.EOF
			}

		case 13, 10:
			fmt.Fprint(e.tty, "\r\n")
			line := string(e.buf)
			e.remember(line)
			return line, nil

		case 127, 8:
			if e.pos > 0 {
				size := prevRuneLen(e.buf, e.pos)
				e.buf = append(e.buf[:e.pos-size], e.buf[e.pos:]...)
				e.pos -= size
			}

		case 1: // Ctrl-A
			e.pos = 0

		case 5: // Ctrl-E
			e.pos = len(e.buf)

		case 21: // Ctrl-U
			e.buf = e.buf[:0]
			e.pos = 0

		case 27:
			if n, _ := e.tty.Read(esc[:1]); n == 0 || esc[0] != '[' {
				continue
			}
			if n, _ := e.tty.Read(esc[1:2]); n == 0 {
				continue
			}
			e.escape(esc[1], esc[2:3])

		default:
			if b[0] >= 32 {
				e.insert(e.readRune(b[0]))
			}
		}

		e.redraw(prompt)
	}
}

// escape applies the CSI sequence ending in code.
func (e *Editor) escape(code byte, scratch []byte) {
	switch code {
	case 'A':
		e.browse(-1)
	case 'B':
		e.browse(1)
	case 'D':
		if e.pos > 0 {
			e.pos -= prevRuneLen(e.buf, e.pos)
		}
	case 'C':
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.pos += size
		}
	case 'H':
		e.pos = 0
	case 'F':
		e.pos = len(e.buf)
	case '3': // \x1b[3~
		e.tty.Read(scratch)
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.buf = append(e.buf[:e.pos], e.buf[e.pos+size:]...)
		}
	case '1', '7': // \x1b[1~
		e.tty.Read(scratch)
		e.pos = 0
	case '4', '8':
		e.tty.Read(scratch)
		e.pos = len(e.buf)
	}
}

func (e *Editor) readRune(lead byte) []byte {
	ch := []byte{lead}
	if extra := utf8SeqLen(lead) - 1; extra > 0 {
		tmp := make([]byte, extra)
		n, _ := io.ReadFull(e.tty, tmp)
		ch = append(ch, tmp[:n]...)
	}
	return ch
}

func (e *Editor) insert(ch []byte) {
	e.buf = append(e.buf[:e.pos], append(ch, e.buf[e.pos:]...)...)
	e.pos += len(ch)
}

// browse moves through history by delta, saving the live line on the way in.
func (e *Editor) browse(delta int) {
	next := e.histPos + delta
	if next < 0 || next > len(e.history) {
		return
	}
	if e.histPos == len(e.history) {
		e.live = append(e.live[:0], e.buf...)
	}
	e.histPos = next
	if next == len(e.history) {
		e.buf = append(e.buf[:0], e.live...)
	} else {
		e.buf = append(e.buf[:0], e.history[next]...)
	}
	e.pos = len(e.buf)
}

func (e *Editor) remember(line string) {
	if line == "" || (len(e.history) > 0 && e.history[len(e.history)-1] == line) {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.tty, "\r\x1b[K%s%s", prompt, e.buf)
	if tail := utf8.RuneCount(e.buf[e.pos:]); tail > 0 {
		fmt.Fprintf(e.tty, "\x1b[%dD", tail)
	}
}

func prevRuneLen(buf []byte, pos int) int {
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	return pos - i
}

func utf8SeqLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	}
	return 4
}
