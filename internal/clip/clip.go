// Package clip copies tool results out of the console: native clipboard
// first, then the terminal's OSC52 clipboard, then a temp file.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is the mechanism that made the content available.
type Method string

const (
	MethodNative Method = "native"
	MethodOSC52  Method = "osc52"
	// MethodFile means no clipboard was reachable and the content was
	// written to a temp file instead.
	MethodFile Method = "file"
)

// Result reports how content was copied.
type Result struct {
	Method   Method
	FilePath string // only set when Method == MethodFile
}

// String describes the result for a status line.
func (r Result) String() string {
	switch r.Method {
	case MethodNative:
		return "copied to clipboard"
	case MethodOSC52:
		return "copied via terminal clipboard"
	case MethodFile:
		return "clipboard unavailable, saved to " + r.FilePath
	}
	return "not copied"
}

// osc52LimitBytes is a conservative payload cap; terminals drop larger ones.
const osc52LimitBytes = 100_000

// Copier tries each copy mechanism in turn.
type Copier struct {
	native  func(string) error
	osc52   func(string) error
	tempDir string
}

// New returns a Copier wired to the system clipboard and stderr.
func New() *Copier {
	return &Copier{
		native: atotto.WriteAll,
		osc52:  func(text string) error { return writeOSC52(os.Stderr, text) },
	}
}

// WriteAll copies text, falling back from native to OSC52 to a temp file.
func (c *Copier) WriteAll(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}
	if c.native != nil {
		if err := c.native(text); err == nil {
			return Result{Method: MethodNative}, nil
		}
	}
	if c.osc52 != nil {
		if err := c.osc52(text); err == nil {
			return Result{Method: MethodOSC52}, nil
		}
	}

	path, err := c.writeTempFile(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

// WriteAll copies text with the default Copier.
func WriteAll(text string) (Result, error) {
	return New().WriteAll(text)
}

// writeOSC52 emits the OSC52 sequence on w when w is a terminal. stderr is
// used so the sequence does not interleave with Bubble Tea's stdout renderer.
func writeOSC52(w *os.File, text string) error {
	if !term.IsTerminal(int(w.Fd())) {
		return errors.New("not a terminal")
	}
	return emitOSC52(w, text)
}

func emitOSC52(w io.Writer, text string) error {
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}
	seq := osc52.New(text).Limit(osc52LimitBytes)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if os.Getenv("STY") != "" {
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(w)
	return err
}

func (c *Copier) writeTempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.tempDir, "agentmesh-tool-*.txt")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}
