package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stellarlinkco/persona-ssr/api"
	"github.com/stellarlinkco/persona-ssr/internal/config"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
	"github.com/stellarlinkco/persona-ssr/internal/queue"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr

	loadConfig       = config.Load
	openStore        = store.Open
	oracleFromConfig = oracle.FromConfig
	newQueue         = queue.New
	newServer        = api.NewServer
	runServer        = (*api.Server).Run
)

func main() {
	osExit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(stderrWriter)

	var addr string
	var configPath string
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.StringVar(&configPath, "config", config.DefaultPath, "path to config file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	defer func() { _ = st.Close() }()

	orc, err := oracleFromConfig(cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	q, err := newQueue(st, orc, cfg)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	q.Start()
	defer q.Stop()

	if err := q.RecoverPending(context.Background()); err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	srv, err := newServer(cfg, st, q)
	if err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}
	if err := runServer(srv, addr); err != nil {
		fmt.Fprintln(stderrWriter, err)
		return 1
	}

	return 0
}
