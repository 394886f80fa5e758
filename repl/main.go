// Command archchan-repl is an interactive client for archchand.
// It reads lines from the terminal, sends them as request frames and prints
// each reply. A TOML transcript is written to stdout when it is redirected.
//
// Usage:
//
//	./archchan-repl                       # interactive
//	./archchan-repl -lang Japanese > log.toml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	archchan "github.com/berkucuk/archchan"
)

const prompt = "> "

func main() {
	addr := flag.String("addr", "", "daemon address (default from config)")
	lang := flag.String("lang", archchan.DefaultLanguage, "reply language")
	flag.Parse()

	if *addr == "" {
		cfg, err := archchan.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		*addr = archchan.ListenAddr(cfg)
	}

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	frames := archchan.NewFrameReader(conn, 0)

	editor, err := NewEditor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer editor.Close()

	tty := termWriter(editor.Tty())
	fmt.Fprint(tty, "\033[2J\033[H")
	fmt.Fprintf(tty, "archchan repl, connected to %s\n", *addr)
	fmt.Fprintf(tty, "language: %s\n", *lang)
	fmt.Fprint(tty, "\ncommands:\n")
	fmt.Fprint(tty, "  :lang <name>  change reply language\n")
	fmt.Fprint(tty, "  :quit         exit\n\n")

	var transcript io.Writer
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		transcript = os.Stdout
	}

	for {
		text, err := editor.ReadLine(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupt) {
			return
		}
		if err != nil {
			fmt.Fprintf(tty, "read error: %v\n", err)
			return
		}

		switch {
		case text == "":
			continue
		case text == ":quit" || text == ":q":
			return
		case strings.HasPrefix(text, ":lang "):
			*lang = strings.TrimSpace(strings.TrimPrefix(text, ":lang "))
			fmt.Fprintf(tty, "language: %s\n\n", *lang)
			continue
		}

		req := &archchan.Request{Language: *lang, Text: text}
		sent := time.Now()
		if err := archchan.WriteFrame(conn, archchan.EncodeRequest(req)); err != nil {
			fmt.Fprintf(tty, "send error: %v\n", err)
			return
		}
		frame, err := frames.ReadFrame()
		if err != nil {
			fmt.Fprintf(tty, "connection closed: %v\n", err)
			return
		}
		latency := time.Since(sent)

		resp, err := archchan.DecodeResponse(frame)
		if err != nil {
			fmt.Fprintf(tty, "bad response: %v\n", err)
			continue
		}
		showResponse(tty, resp)

		if transcript != nil {
			if err := writeExchange(transcript, req, resp, sent, latency); err != nil {
				fmt.Fprintf(tty, "transcript error: %v\n", err)
			}
		}
	}
}
