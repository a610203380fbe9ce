// Package cli implements the nayru command line: the serve subcommand
// that hosts the engine and HTTP API, and the thin client subcommands
// (speak, stop, skip, pause, resume, status) that talk to a running
// serve process.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/nayru/internal/config"
	"github.com/hammamikhairi/nayru/internal/engine"
	"github.com/hammamikhairi/nayru/internal/httpapi"
	"github.com/hammamikhairi/nayru/internal/logger"
	"github.com/hammamikhairi/nayru/internal/player"
	"github.com/hammamikhairi/nayru/internal/synth"
	"github.com/hammamikhairi/nayru/internal/telemetry"
)

// Exit codes of the nayru binary.
const (
	ExitOK          = 0
	ExitUnreachable = 1
	ExitBadArgs     = 2
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const usageText = `usage: nayru <command> [flags]

commands:
  serve    start the voice server (flags: -addr, -port, -kokoro-url, -voice, -speed, ...)
  speak    submit text for playback: nayru speak [-voice v] <text>
  stop     stop playback and clear the queue
  skip     skip the current sentence
  pause    pause playback
  resume   resume playback
  status   print the server's transport state

client commands take -addr (default 127.0.0.1:2003, env NAYRU_ADDR).
`

// Run dispatches argv to a subcommand and returns the process exit code.
func Run(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(errOut, usageText)
		return ExitBadArgs
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(rest, out, errOut)
	case "speak":
		return runSpeak(rest, out, errOut)
	case "stop", "skip", "pause", "resume":
		return runCommand(cmd, rest, out, errOut)
	case "status":
		return runStatus(rest, out, errOut)
	case "help", "-h", "--help":
		fmt.Fprint(out, usageText)
		return ExitOK
	default:
		fmt.Fprintf(errOut, "unknown command %q\n\n%s", cmd, usageText)
		return ExitBadArgs
	}
}

func runServe(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(errOut)

	cfg, err := config.Load(fs, args)
	if err != nil {
		fmt.Fprintln(errOut, errStyle.Render(err.Error()))
		return ExitBadArgs
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(errOut, errStyle.Render(err.Error()))
		return ExitBadArgs
	}
	defer closeLog()

	ctx := context.Background()

	metrics, shutdownMetrics, err := telemetry.InitProvider(ctx, "nayru")
	if err != nil {
		log.Error("telemetry init failed, continuing without metrics: %v", err)
	} else {
		defer shutdownMetrics(ctx)
	}

	cache := synth.NewAudioCache(cfg.CacheDir, cfg.DiskCache, log)
	syn := synth.New(log,
		synth.WithCache(cache),
		synth.WithMetrics(metrics),
	)

	eng := engine.New(ctx, cfg.Config, syn, player.NewSink(log), log)
	defer eng.Close()

	fmt.Fprintln(out, Banner())
	fmt.Fprintf(out, "  voice %s · speed %.2f · upstream %s\n\n", cfg.Voice, cfg.Speed, cfg.KokoroURL)

	srv := httpapi.New(eng, log)
	if err := srv.Run(cfg.Addr); err != nil {
		log.Error("server exited: %v", err)
		return ExitUnreachable
	}
	return ExitOK
}

func runSpeak(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("speak", flag.ContinueOnError)
	fs.SetOutput(errOut)
	addr := fs.String("addr", defaultAddr(), "address of the running nayru serve")
	voice := fs.String("voice", "", "voice override for this utterance")
	if err := fs.Parse(args); err != nil {
		return ExitBadArgs
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(errOut, errStyle.Render("speak: text is required"))
		return ExitBadArgs
	}

	result, err := NewClient(*addr).Speak(text, *voice)
	if err != nil {
		fmt.Fprintln(errOut, errStyle.Render("speak: "+err.Error()))
		return ExitUnreachable
	}
	fmt.Fprintf(out, "queued %d chunk(s)\n", result.QueuedChunks)
	return ExitOK
}

func runCommand(name string, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	addr := fs.String("addr", defaultAddr(), "address of the running nayru serve")
	if err := fs.Parse(args); err != nil {
		return ExitBadArgs
	}

	if err := NewClient(*addr).Command(name); err != nil {
		fmt.Fprintln(errOut, errStyle.Render(name+": "+err.Error()))
		return ExitUnreachable
	}
	fmt.Fprintln(out, "ok")
	return ExitOK
}

func runStatus(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(errOut)
	addr := fs.String("addr", defaultAddr(), "address of the running nayru serve")
	if err := fs.Parse(args); err != nil {
		return ExitBadArgs
	}

	st, err := NewClient(*addr).Status()
	if err != nil {
		fmt.Fprintln(errOut, errStyle.Render("status: "+err.Error()))
		return ExitUnreachable
	}

	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("state"), st.State)
	if st.CurrentIndex != nil {
		fmt.Fprintf(out, "%s %d of %d\n", labelStyle.Render("sentence"), *st.CurrentIndex+1, st.Total)
	}
	fmt.Fprintf(out, "%s %d\n", labelStyle.Render("queued"), st.QueueLength)
	fmt.Fprintf(out, "%s %s · %.2fx\n", labelStyle.Render("voice"), st.Voice, st.Speed)
	if st.LastError != "" {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("last error"), st.LastError)
	}
	return ExitOK
}

func defaultAddr() string {
	if v, ok := os.LookupEnv(config.EnvAddr); ok {
		return v
	}
	return "127.0.0.1:2003"
}

func newLogger(cfg config.Config) (*logger.Logger, func(), error) {
	level := logger.LevelNormal
	switch cfg.LogLevel {
	case "off":
		level = logger.LevelOff
	case "verbose":
		level = logger.LevelVerbose
	}

	if cfg.LogFile == "" {
		return logger.New(level, os.Stderr), func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return logger.New(level, f), func() { f.Close() }, nil
}
