package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/chat"
	"github.com/creastat/krishi/fallback"
	"github.com/creastat/krishi/loop"
	"github.com/creastat/krishi/reconnect"
	"github.com/creastat/krishi/transport"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Opens the advisory chat. Type a question and press enter.

Commands:
  /lang <code>          switch language (hi, en, pa)
  /voice <ref> <text>   send a voice-note transcript
  /clear                clear the conversation
  /quit                 leave`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := newProfileService()
	if err != nil {
		return err
	}
	defer profiles.Close()

	store, err := newSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	retriever, err := newRetriever()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".krishi_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start terminal: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	l := loop.New(loop.WithLogger(logger))

	opts := []chat.Option{
		chat.WithUser(profiles.Current()),
		chat.WithLanguage(cfg.Chat.Language),
		chat.WithLogger(logger),
		chat.WithFallbackLatency(fallback.Latency{Min: cfg.Chat.FallbackMinLatency, Max: cfg.Chat.FallbackMaxLatency}),
		chat.WithReconnect(
			reconnect.WithDelay(cfg.Chat.ReconnectDelay),
			reconnect.WithMaxAttempts(cfg.Chat.MaxReconnectAttempts),
		),
		chat.WithStore(store, historyLimits()),
		chat.WithObserver(func(ev chat.Event) { render(out, ev) }),
	}
	if retriever != nil {
		defer retriever.Close()
		opts = append(opts, chat.WithRetriever(retriever, 2*time.Second))
	}

	factory := transport.NewFactory(transport.Config{
		BaseURL:          cfg.Backend.WSURL,
		HandshakeTimeout: cfg.Backend.HandshakeTimeout,
	}, logger)
	s := chat.New(l, factory, opts...)

	g, ctx := errgroup.WithContext(ctx)

	// The loop outlives ctx so the session can still close cleanly after a
	// signal; the REPL goroutine stops it on the way out.
	g.Go(func() error {
		return l.Run(context.Background())
	})

	g.Go(func() error {
		defer l.Stop()
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				logger.Warn("failed to close session", zap.Error(err))
			}
		}()

		if err := s.Start(ctx); err != nil {
			return err
		}
		return repl(ctx, rl, s)
	})

	// Readline blocks on the terminal; closing it unblocks the REPL on signal.
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	return g.Wait()
}

func repl(ctx context.Context, rl *readline.Instance, s *chat.Session) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := dispatch(ctx, s, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(rl.Stderr(), "error:", err)
		}
	}
}

var errQuit = errors.New("quit")

func dispatch(ctx context.Context, s *chat.Session, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/clear":
		return s.Clear(ctx)
	case "/lang":
		return s.SetLanguage(ctx, rest)
	case "/voice":
		ref, text, _ := strings.Cut(rest, " ")
		return s.SendVoice(ctx, text, ref)
	default:
		return s.Send(ctx, line)
	}
}

func render(w io.Writer, ev chat.Event) {
	switch ev.Type {
	case chat.EventMessage:
		m := ev.Message
		switch m.Role {
		case krishi.RoleUser:
			return // already on screen
		case krishi.RoleSystem:
			fmt.Fprintf(w, "ℹ %s\n", m.Text)
		default:
			fmt.Fprintf(w, "🌱 %s\n", m.Text)
		}
		if m.Metadata != nil {
			for _, ref := range m.Metadata.References {
				fmt.Fprintf(w, "   📖 %s\n", ref)
			}
			if len(m.Metadata.Suggestions) > 0 {
				fmt.Fprintf(w, "   → %s\n", strings.Join(m.Metadata.Suggestions, " | "))
			}
		}
	case chat.EventCleared:
		fmt.Fprintln(w, "(conversation cleared)")
	case chat.EventRestored:
		fmt.Fprintln(w, "(previous conversation restored)")
	case chat.EventState:
		fmt.Fprintf(w, "[%s]\n", ev.State)
	}
}
