package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/koscakluka/xperto/core/audio/miniaudio"
	"github.com/koscakluka/xperto/core/bot"
	"github.com/koscakluka/xperto/core/sessions"
	"github.com/koscakluka/xperto/internal/config"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	configName := cli.StringP("config", "c", "", "Config name (from ./configs) or path to a YAML config")
	resume := cli.StringP("resume", "r", "", "Resume a saved session by id or unique part of it")
	listContexts := cli.Bool("list-contexts", false, "List saved sessions and exit")
	listDevices := cli.Bool("list-devices", false, "List audio devices and exit")
	pickDevices := cli.Bool("select-devices", false, "Choose the microphone and speaker before starting")
	language := cli.String("language", "", "Override the conversation language (EN or DE)")
	assistantName := cli.String("assistant-name", "", "Override the assistant's name")
	voice := cli.String("voice", "", "Override the text to speech voice")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	cli.Parse()

	if *listDevices {
		if err := printDevices(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	level, ok := logLevelMap[*logLevel]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *logLevel)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "err", err)
	}

	path := ""
	if *configName != "" {
		path = config.Resolve(*configName, config.DefaultDir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Override(*language, *assistantName, *voice); err != nil {
		slog.Error("invalid override", "err", err)
		os.Exit(1)
	}

	store, err := sessions.NewStore(cfg.Paths.Contexts)
	if err != nil {
		slog.Error("failed to open session store", "dir", cfg.Paths.Contexts, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listContexts {
		if err := printSessions(ctx, os.Stdout, store); err != nil {
			slog.Error("failed to list sessions", "err", err)
			os.Exit(1)
		}
		return
	}

	var deviceOpts []miniaudio.ClientOption
	if *pickDevices {
		if deviceOpts, err = selectDevices(); err != nil {
			if errors.Is(err, errSelectionCancelled) {
				return
			}
			slog.Error("failed to select audio devices", "err", err)
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, store, *resume, deviceOpts...); err != nil {
		var ambiguous *sessions.AmbiguousMatchError
		switch {
		case errors.As(err, &ambiguous):
			fmt.Fprintf(os.Stderr, "%q matches several sessions, be more specific:\n", ambiguous.Query)
			for _, id := range ambiguous.Matches {
				fmt.Fprintf(os.Stderr, "  %s\n", id)
			}
		case errors.Is(err, sessions.ErrSessionNotFound):
			fmt.Fprintf(os.Stderr, "no saved session matches %q, see --list-contexts\n", *resume)
		default:
			slog.Error("conversation failed", "err", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store *sessions.Store, resume string, deviceOpts ...miniaudio.ClientOption) error {
	providers, err := newProviders(cfg, deviceOpts...)
	if err != nil {
		return err
	}
	defer providers.Close()

	opts := []bot.Option{
		bot.WithSpeechToText(providers.transcriber),
		bot.WithTextToSpeech(providers.synthesizer),
		bot.WithAudioInput(providers.audio),
		bot.WithAudioOutput(providers.audio),
		bot.WithLLM(providers.llm),
		bot.WithClassifier(providers.classifier),
		bot.WithSessionStore(store),
	}
	if providers.tools != nil {
		opts = append(opts, bot.WithTools(providers.tools))
	}
	if resume != "" {
		opts = append(opts, bot.WithResume(resume))
	}

	b, err := bot.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	slog.Info("conversation ready", "session", b.SessionID(), "resumed", b.Resumed(),
		"language", cfg.Bot.Language, "assistant", cfg.Bot.AssistantNames[0])

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("conversation saved", "session", b.SessionID(), "transcript", b.TranscriptPath())
	return nil
}

func printSessions(ctx context.Context, w io.Writer, store *sessions.Store) error {
	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(w, "No saved sessions in %s\n", store.Dir())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSAVED\tMESSAGES\tCONFIG\tPARTICIPANTS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n",
			info.SessionID,
			info.Timestamp.Local().Format("2006-01-02 15:04"),
			info.MessageCount,
			info.ConfigUsed,
			info.ParticipantCount,
		)
	}
	return tw.Flush()
}
