package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/loqalabs/loqa-scribe/internal/app"
	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/display"
	"github.com/loqalabs/loqa-scribe/internal/recorder"
	"github.com/loqalabs/loqa-scribe/internal/runtime"
	"github.com/loqalabs/loqa-scribe/internal/transcribe"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath string
		filePath   string
		mediaType  string
	)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&configPath, "config", "scribe.yaml", "Path to configuration file")

	transcribeCmd := flag.NewFlagSet("transcribe", flag.ExitOnError)
	transcribeCmd.StringVar(&configPath, "config", "scribe.yaml", "Path to configuration file")
	transcribeCmd.StringVar(&filePath, "file", "", "Recorded audio to upload")
	transcribeCmd.StringVar(&mediaType, "type", "", "Media type of the file (guessed from the extension when empty)")

	recordCmd := flag.NewFlagSet("record", flag.ExitOnError)
	recordCmd.StringVar(&configPath, "config", "scribe.yaml", "Path to configuration file")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'validate', 'transcribe', 'record' or 'version'")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if _, err := config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("config valid")
	case "transcribe":
		transcribeCmd.Parse(os.Args[2:])
		if err := runTranscribe(ctx, configPath, filePath, mediaType, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "record":
		recordCmd.Parse(os.Args[2:])
		if err := runRecord(ctx, configPath, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// runTranscribe uploads an existing recording and prints the outcome the
// way the UI would show it.
func runTranscribe(ctx context.Context, configPath, filePath, mediaType string, out io.Writer) error {
	if filePath == "" {
		return errors.New("-file is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	if mediaType == "" {
		mediaType = guessMediaType(filePath, cfg.Capture)
	}

	transcriber, err := transcribe.New(cfg.Transcribe, newLogger())
	if err != nil {
		return err
	}
	result, err := transcriber.Transcribe(ctx, capture.Blob{Data: data, MediaType: mediaType})
	if err != nil {
		fmt.Fprintln(out, display.Text(ui.Failed(app.Describe(err))))
		return err
	}
	fmt.Fprintln(out, display.Text(ui.Done(result)))
	return nil
}

func guessMediaType(path string, cfg config.CaptureConfig) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".raw" || ext == ".pcm" {
		return capture.PCMMediaType(cfg.SampleRate, cfg.Channels)
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// runRecord drives the microphone from a terminal: each Enter presses the
// record/stop button. "q" or end of input stops a live recording and quits
// once its transcript is printed; a signal quits without waiting.
func runRecord(ctx context.Context, configPath string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger()
	source, err := capture.NewSource(cfg.Capture)
	if err != nil {
		return err
	}
	transcriber, err := transcribe.New(cfg.Transcribe, logger)
	if err != nil {
		return err
	}

	ctrl := app.New(ctx, capture.NewRecorder(source, logger), transcriber, runtime.Messages(cfg.UI), logger)
	defer ctrl.Close()
	ctrl.AddHook(func(_ context.Context, t app.Transition) {
		fmt.Fprintln(out, display.Text(t.To))
	})

	fmt.Fprintln(out, display.Text(ctrl.State()))
	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || line == "q" {
				if ctrl.Affordance() == recorder.AffordanceStop {
					if err := ctrl.Stop(); err != nil && !errors.Is(err, capture.ErrInvalidState) {
						logger.Warn("stopping recording", slog.String("error", err.Error()))
					}
				}
				ctrl.Wait()
				return nil
			}
			if err := ctrl.Toggle(ctx); errors.Is(err, capture.ErrInvalidState) {
				fmt.Fprintln(out, "busy: wait for the current request to finish")
			}
		}
	}
}
