package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/config"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/improver"
	"github.com/book-expert/text-improver/internal/objectstore"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var errNoText = errors.New("no text given as arguments or on stdin")

// app is everything a command needs, built from the configuration file and
// the environment.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *objectstore.DirStore
	session *session.Session
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.LoadFile(flags.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	creds, err := config.LoadCredentials(flags.envFile)
	if err != nil {
		_ = log.Close()

		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	store, err := objectstore.NewDirStore(cfg.Paths.AudioDir)
	if err != nil {
		_ = log.Close()

		return nil, fmt.Errorf("failed to prepare audio directory: %w", err)
	}

	sess, err := improver.NewSession(cfg, creds, store, log)
	if err != nil {
		_ = store.Close()
		_ = log.Close()

		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, session: sess}, nil
}

// Close removes the temporary audio directory, if any, and closes the log.
func (a *app) Close() {
	err := a.store.Close()
	if err != nil {
		a.log.Warn("Failed to clean up audio directory: %v", err)
	}

	_ = a.log.Close()
}

// readText joins args, or reads stdin when there are none.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errNoText
	}

	return text, nil
}

// saveAudio writes the synthesized audio to path and releases the resource.
func saveAudio(ctx context.Context, out io.Writer, audio *core.AudioResource, path string) error {
	defer func() { _ = audio.Release(ctx) }()

	data, err := audio.Bytes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	printStatus(out, "✓", fmt.Sprintf("Saved %s of audio to %s", humanize.Bytes(uint64(len(data))), path), color.FgGreen)

	return nil
}

// describe turns a taxonomy error into the text shown to the user.
func describe(err error) error {
	kind := core.KindOf(err)
	if kind == core.KindUnknown {
		return err
	}

	return fmt.Errorf("%s (%w)", core.Message(kind), err)
}

func printStatus(out io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(out, "%s %s\n", c.Sprint(symbol), message)
}
