package cmd

import (
	"fmt"
	"os"

	"flint/vm"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

func App() (app *cobra.Command) {
	app = &cobra.Command{
		Use:   "flint [script]",
		Short: "Launch the `flint` interpreter",
		Args:  cobra.MaximumNArgs(1),
	}

	app.Flags().SortFlags = true
	defaultVerbosityStr := "INFO"
	verbosity := app.Flags().StringP("verbosity", "v", defaultVerbosityStr, "Logging verbosity")

	app.Run = func(_ *cobra.Command, args []string) {
		verbosityLvl, err := logrus.ParseLevel(*verbosity)
		if err != nil {
			verbosityLvl, _ = logrus.ParseLevel(defaultVerbosityStr)
		}
		logrus.SetLevel(verbosityLvl)
		logrus.SetFormatter(&easy.Formatter{LogFormat: "//DBG// %msg%\n"})

		if len(args) == 1 {
			if err := runFile(args[0]); err != nil {
				logrus.Fatal(err)
			}
			return
		}
		if err := repl(); err != nil {
			logrus.Fatal(err)
		}
	}
	return
}

func runFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = vm.NewVM().Interpret(string(src), false)
	return err
}

func repl() error {
	rl, err := readline.New(">> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	vm_ := vm.NewVM()
	for {
		line, err := rl.Readline()
		switch err {
		case nil:
		case readline.ErrInterrupt:
			continue
		default:
			return nil // EOF ends the session.
		}

		val, err := vm_.Interpret(line+"\n", true)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Printf("%s\n", val)
	}
}
