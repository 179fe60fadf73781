package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/config"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errTasksFailed) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "ssr",
		Short:         "Score live-ops proposals against persona panels",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newListCmd(st))
	root.AddCommand(newSeedCmd(st))
	root.AddCommand(newWorkCmd(st))
	root.AddCommand(newEvaluateCmd(st))
	root.AddCommand(newAggregateCmd(st))
	return root
}

// load reads the config file once. A missing file at the default path
// falls back to built-in defaults; an explicit --config must exist.
func (st *cliState) load() error {
	if st.cfg != nil {
		return nil
	}
	cfg, err := config.Load(st.configPath)
	if err != nil {
		if st.configPath == config.DefaultPath && errors.Is(err, os.ErrNotExist) {
			st.cfg = config.Default()
			return nil
		}
		return err
	}
	st.cfg = cfg
	return nil
}

func (st *cliState) openStore() (store.Store, error) {
	if err := st.load(); err != nil {
		return nil, err
	}
	return store.Open(st.cfg)
}
