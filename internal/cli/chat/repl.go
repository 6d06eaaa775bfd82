package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"github.com/askmesh/askmesh/internal/assistant"
	"github.com/askmesh/askmesh/internal/history"
	"github.com/askmesh/askmesh/internal/observability"
)

const prompt = "askmesh> "

// LineReader is the part of a readline instance the loop needs.
type LineReader interface {
	Readline() (string, error)
}

type Options struct {
	Format      string
	HistoryFile string
	Tables      []string
	Stdout      io.Writer
	Stderr      io.Writer
	Logger      *slog.Logger
}

type Session struct {
	assistant *assistant.Assistant
	opts      Options
	logger    *slog.Logger
}

func NewSession(a *assistant.Assistant, opts Options) *Session {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if !ValidFormat(opts.Format) {
		opts.Format = FormatTable
	}
	return &Session{assistant: a, opts: opts, logger: observability.OrDiscard(opts.Logger)}
}

// Run starts an interactive prompt with persistent line history.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     s.opts.HistoryFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.opts.Stdout,
		Stderr:          s.opts.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(s.opts.Stdout, "askmesh: ask questions about your data in plain language.")
	_, _ = fmt.Fprintln(s.opts.Stdout, "Type .help for commands, exit or quit to leave.")
	_, _ = fmt.Fprintln(s.opts.Stdout)
	return s.Loop(ctx, rl)
}

// Loop reads questions until an exit sentinel, EOF or context cancellation.
func (s *Session) Loop(ctx context.Context, lines LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := lines.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if stop := s.handleDotCommand(ctx, line); stop {
				return nil
			}
			continue
		}

		answer := s.assistant.Ask(ctx, line)
		RenderAnswer(s.opts.Stdout, answer, s.opts.Format)
		if answer.Ended {
			return nil
		}
		_, _ = fmt.Fprintln(s.opts.Stdout)
	}
}

func (s *Session) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	out, errOut := s.opts.Stdout, s.opts.Stderr

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printHelp(out)

	case ".tables":
		if len(s.opts.Tables) == 0 {
			_, _ = fmt.Fprintln(out, "No schema tables loaded.")
			break
		}
		for _, name := range s.opts.Tables {
			_, _ = fmt.Fprintln(out, name)
		}

	case ".history":
		RenderHistory(out, s.assistant.History())

	case ".reset":
		s.assistant.Reset()
		_, _ = fmt.Fprintln(out, "Started a new query; the next question will not refine the previous SQL.")

	case ".sql":
		statement := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		if statement == "" {
			_, _ = fmt.Fprintln(errOut, "Usage: .sql <statement>")
			break
		}
		RenderOutcome(out, s.assistant.Run(ctx, statement), s.opts.Format)

	case ".format":
		if len(parts) < 2 || !ValidFormat(parts[1]) {
			_, _ = fmt.Fprintln(errOut, "Usage: .format table|json|csv|md")
			break
		}
		s.opts.Format = parts[1]

	case ".export":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .export <file.parquet>")
			break
		}
		result, err := history.WriteFile(parts[1], s.assistant.History())
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			break
		}
		s.logger.Info("history exported", slog.String("path", parts[1]), slog.Int64("turns", result.RecordCount))
		_, _ = fmt.Fprintf(out, "Exported %d turns to %s\n", result.RecordCount, parts[1])

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .tables           List the schema tables used for retrieval
  .history          Show the questions asked in this session
  .reset            Forget the current SQL; the next question starts fresh
  .sql <statement>  Run a statement directly (read-only rules still apply)
  .format <name>    Switch output between table, json, csv and md
  .export <file>    Write the session history as a parquet file
  .quit / .exit     Leave (exit and quit also work without the dot)

Tips:
  - Follow-up questions refine the previous SQL ("only orders from 2023")
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func (s *Session) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(s.opts.Tables)+9)
	for _, name := range s.opts.Tables {
		items = append(items, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".history"),
		readline.PcItem(".reset"),
		readline.PcItem(".sql"),
		readline.PcItem(".format"),
		readline.PcItem(".export"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
