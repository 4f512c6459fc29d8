// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/lore"
	"github.com/poiesic/lore/config"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/stream"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lore",
		Usage: "Conversational question answering over ingested articles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{config.PathEnv},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override the data directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to the configured address)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a single question and stream the answer",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Conversation id to continue",
					},
					&cli.BoolFlag{
						Name:  "no-stream",
						Usage: "Wait for the full answer and print it with its sources",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest one or more article URLs",
				ArgsUsage: "<url> [url...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title override, single URL only",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func openService(c *cli.Context, opts ...lore.ServiceOption) (*lore.Service, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]lore.ServiceOption{lore.WithLogger(slog.Default())}, opts...)
	svc, err := lore.NewService(c.Context, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cfg, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Addr
	}
	return svc.NewServer().ListenAndServe(ctx, addr)
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	svc, _, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	req := core.ChatRequest{Message: question, ConversationID: c.String("conversation")}
	out := c.App.Writer
	if c.Bool("no-stream") {
		resp, err := svc.Orchestrator().Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.Message)
		printSources(out, resp.Sources)
		return nil
	}
	return svc.Orchestrator().ChatStream(ctx, req, terminalSink(out))
}

// terminalSink prints content as it arrives and sources after the answer.
func terminalSink(out io.Writer) stream.Sink {
	var sources []core.SourceSummary
	return stream.SinkFunc(func(ev core.StreamEvent) error {
		switch ev.Type {
		case core.EventSources:
			sources = ev.Sources
		case core.EventContent:
			_, err := io.WriteString(out, ev.Content)
			return err
		case core.EventDone:
			fmt.Fprintln(out)
			printSources(out, sources)
		case core.EventError:
			return fmt.Errorf("%s: %s", ev.Code, ev.Message)
		}
		return nil
	})
}

func printSources(out io.Writer, sources []core.SourceSummary) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(out, "  [%.2f] %s <%s>\n", s.Relevance, s.Title, s.URL)
	}
}

func ingestCommand(c *cli.Context) error {
	urls := c.Args().Slice()
	if len(urls) == 0 {
		return errors.New("at least one url is required")
	}
	if len(urls) > 1 && c.String("title") != "" {
		return errors.New("--title applies to a single url")
	}

	out := c.App.Writer
	if len(urls) == 1 {
		svc, _, err := openService(c)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Ingester().Ingest(c.Context, urls[0], c.String("title"))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Ingested %q: %d chunks\n", res.Title, res.Chunks)
		return nil
	}

	svc, _, err := openService(c, lore.WithBatchProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Scheduler().SubmitBatch(c.Context, urls); err != nil {
		return err
	}
	svc.Scheduler().Wait()

	status := svc.Scheduler().Status()
	fmt.Fprintf(out, "Processed %d/%d articles\n", status.Processed, status.Total)
	for _, e := range status.Errors {
		fmt.Fprintf(out, "  failed: %s\n", e)
	}
	if len(status.Errors) == status.Total {
		return errors.New("no article was ingested")
	}
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.AI.Token = redact(cfg.AI.Token)
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func redact(token string) string {
	if token == "" || token == "none" {
		return token
	}
	return "***"
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
