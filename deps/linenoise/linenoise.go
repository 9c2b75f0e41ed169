package linenoise

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// ErrPromptAborted is returned by Prompt when the user hits Ctrl-C.
var ErrPromptAborted = liner.ErrPromptAborted

type LineNoise struct {
	*liner.State
}

// New puts the terminal in raw mode. Close must be called to restore it.
func New(completions []string) *LineNoise {
	ln := &LineNoise{liner.NewLiner()}
	ln.SetCtrlCAborts(true)
	if len(completions) > 0 {
		ln.SetCompleter(func(line string) (c []string) {
			for _, word := range completions {
				if strings.HasPrefix(word, strings.ToLower(line)) {
					c = append(c, word)
				}
			}
			return
		})
	}
	return ln
}

func (ln *LineNoise) HistoryLoad(filepath string) error {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}
	_, err = ln.ReadHistory(bytes.NewReader(content))
	return err
}

func (ln *LineNoise) HistorySave(filepath string) error {
	var buf bytes.Buffer
	_, err := ln.WriteHistory(&buf)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, buf.Bytes(), 0644)
}

func (ln *LineNoise) ClearScreen(w io.Writer) error {
	_, err := fmt.Fprint(w, "\x1b[H\x1b[2J")
	return err
}
