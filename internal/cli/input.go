// Package cli is the interactive REPL for trying the engine out by hand.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/engine"
)

// Predictor is the part of the engine the REPL drives.
type Predictor interface {
	Predict(ctx context.Context, req engine.PredictRequest) engine.Response
	Learn(userID, text string)
	Feedback(userID, text, selected string)
}

var (
	wordStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
)

// InputHandler reads lines and prints suggestions for each. Lines starting
// with ':' are commands:
//
//	:learn <text>   feed text to the model
//	:pick <n>       select the nth suggestion of the last result
//	:ctx [message]  set or clear the message being replied to
//	:user [id]      set or clear the user
//	:q              quit
//
// Trailing spaces are kept, so "iyi " asks for the next word.
type InputHandler struct {
	eng             Predictor
	in              io.Reader
	out             io.Writer
	minPrefixLength int
	maxPrefixLength int
	suggestLimit    int
	noFilter        bool

	user     string
	context  *string
	lastText string
	last     engine.Response
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(eng Predictor, in io.Reader, out io.Writer, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		eng:             eng,
		in:              in,
		out:             out,
		minPrefixLength: minLength,
		maxPrefixLength: maxLength,
		suggestLimit:    limit,
		noFilter:        noFilter,
	}
}

// SetUser sets the user requests are made as.
func (h *InputHandler) SetUser(id string) { h.user = id }

// Start runs the loop until EOF, :q or ctx is done.
func (h *InputHandler) Start(ctx context.Context) error {
	fmt.Fprintln(h.out, promptStyle.Render("wordmux"), dimStyle.Render("type and press enter, :q to quit"))
	reader := bufio.NewReader(h.in)
	for ctx.Err() == nil {
		fmt.Fprint(h.out, promptStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			if quit := h.handleLine(ctx, line); quit {
				return nil
			}
		}
		if err != nil {
			return nil
		}
	}
	return ctx.Err()
}

func (h *InputHandler) handleLine(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, ":") {
		h.handleInput(ctx, line)
		return false
	}
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "q", "quit":
		return true
	case "learn":
		h.eng.Learn(h.user, arg)
		fmt.Fprintln(h.out, dimStyle.Render("learned"))
	case "pick":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(h.last.Suggestions) {
			fmt.Fprintf(h.out, "no suggestion %q\n", arg)
			return false
		}
		picked := h.last.Suggestions[n-1].Text
		h.eng.Feedback(h.user, h.lastText, picked)
		fmt.Fprintln(h.out, dimStyle.Render("picked"), wordStyle.Render(picked))
	case "ctx":
		if arg == "" {
			h.context = nil
		} else {
			h.context = &arg
		}
	case "user":
		h.user = arg
	default:
		fmt.Fprintf(h.out, "unknown command :%s\n", cmd)
	}
	return false
}

// handleInput validates the current word and prints the ranked suggestions.
func (h *InputHandler) handleInput(ctx context.Context, text string) {
	word := utils.LastWord(text)
	if n := utils.RuneLen(word); word != "" && (n < h.minPrefixLength || n > h.maxPrefixLength) {
		log.Errorf("Prefix length %d outside [%d, %d]: %s", n, h.minPrefixLength, h.maxPrefixLength, word)
		return
	}
	if !h.noFilter && word != "" && !utils.IsValidInput(word) {
		fmt.Fprintf(h.out, "No results for '%s' (filtered out)\n", word)
		return
	}

	resp := h.eng.Predict(ctx, engine.PredictRequest{
		Text:           text,
		Context:        h.context,
		MaxSuggestions: h.suggestLimit,
		UserID:         h.user,
	})
	h.lastText, h.last = text, resp
	log.Debugf("Took [ %v ] for '%s' via %v", resp.Elapsed, text, resp.SourcesUsed)

	if resp.CorrectedText != nil {
		fmt.Fprintln(h.out, dimStyle.Render("did you mean"), wordStyle.Render(*resp.CorrectedText))
	}
	if len(resp.Suggestions) == 0 {
		fmt.Fprintf(h.out, "No suggestions for '%s'\n", text)
		return
	}
	for i, s := range resp.Suggestions {
		fmt.Fprintf(h.out, "%2d. %-32s %5.2f  %s\n", i+1, wordStyle.Render(s.Text), s.Score,
			dimStyle.Render(string(s.Kind)+"/"+string(s.Source)))
	}
}
