package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/services/consulting"
	"github.com/liut/medilink/pkg/services/gateway"
	"github.com/liut/medilink/pkg/services/stores"
	"github.com/liut/medilink/pkg/settings"
	"github.com/liut/medilink/pkg/web"
)

func main() {
	app := &cli.App{
		Name:    strings.ToLower(settings.Name),
		Usage:   "clinical consultation service",
		Version: settings.Current.Version,
		Before: func(c *cli.Context) error {
			var zlogger *zap.Logger
			if settings.InDevelop() {
				zlogger, _ = zap.NewDevelopment()
			} else {
				zlogger, _ = zap.NewProduction()
			}
			zap.ReplaceGlobals(zlogger)
			return nil
		},
		After: func(c *cli.Context) error {
			_ = zap.L().Sync()
			return nil
		},
		Action: runWeb,
		Commands: []*cli.Command{
			{
				Name:   "web",
				Usage:  "run the http api server",
				Action: runWeb,
			},
			{
				Name:  "consult",
				Usage: "send clinical notes for analysis and save the result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "notes", Aliases: []string{"n"}, Usage: "patient symptoms and clinical notes", Required: true},
					&cli.StringFlag{Name: "meds", Aliases: []string{"m"}, Usage: "current medications"},
				},
				Action: runConsult,
			},
			{
				Name:  "history",
				Usage: "list or clear past consultations",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "print saved consultations, most recent first",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json or yaml"},
						},
						Action: runHistoryList,
					},
					{
						Name:   "clear",
						Usage:  "drop all saved consultations",
						Action: runHistoryClear,
					},
				},
			},
			{
				Name:  "usage",
				Usage: "show environment settings",
				Action: func(c *cli.Context) error {
					return settings.Usage()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newHistory() (stores.History, error) {
	kv, err := stores.NewKV()
	if err != nil {
		return nil, err
	}
	return stores.NewHistory(kv), nil
}

func newSession() (*consulting.Session, error) {
	hs, err := newHistory()
	if err != nil {
		return nil, err
	}
	preset, _ := stores.LoadPreset()
	return consulting.New(gateway.NewFromSettings(), hs, preset), nil
}

func runWeb(c *cli.Context) error {
	sugar := zap.S()
	sess, err := newSession()
	if err != nil {
		return err
	}
	srv := web.New(web.Config{
		Addr:       settings.Current.HTTPListen,
		Debug:      settings.InDevelop(),
		Session:    sess,
		StartLimit: settings.Current.StartLimit,
	})

	idleClosed := make(chan struct{})
	ctx := context.Background()
	go func() {
		quit := make(chan os.Signal, 2)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		sugar.Info("shuting down server...")
		if err := srv.Stop(ctx); err != nil {
			sugar.Infow("server shutdown:", "err", err)
		}
		close(idleClosed)
	}()

	if err := srv.Serve(ctx); err != nil {
		sugar.Infow("serve fail", "err", err)
		return err
	}

	<-idleClosed
	return nil
}

func runConsult(c *cli.Context) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	res, data, err := sess.StartAnalysis(c.Context, c.String("notes"), c.String("meds"))
	if res == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
	}
	printSummary(c.App.Writer, sess.Summary(res), res.HasInteractions())
	fmt.Fprintf(c.App.Writer, "\n%d consultation(s) in history\n", len(data))
	return nil
}

func printSummary(w io.Writer, r consult.Result, interactions bool) {
	fmt.Fprintf(w, "Diagnosis: %s\n", r.Diagnosis)
	fmt.Fprintf(w, "Rationale: %s\n", r.Rationale)
	printList(w, "Actions", r.Actions)
	printList(w, "Warnings", r.Warnings)
	if interactions {
		printList(w, "Interactions", r.Interactions)
	} else {
		fmt.Fprintln(w, "Interactions: none detected")
	}
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func runHistoryList(c *cli.Context) error {
	hs, err := newHistory()
	if err != nil {
		return err
	}
	data := hs.GetHistory(c.Context)
	switch c.String("format") {
	case "yaml", "yml":
		enc := yaml.NewEncoder(c.App.Writer)
		defer enc.Close()
		return enc.Encode(data)
	default:
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
}

func runHistoryClear(c *cli.Context) error {
	hs, err := newHistory()
	if err != nil {
		return err
	}
	return hs.ClearHistory(c.Context)
}
