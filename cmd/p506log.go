package main

import (
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"

	"p506log/pkg/app"
	"p506log/pkg/app/config"
	"p506log/pkg/csvlog"
)

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Datalogger for the Protek 506 digital multimeter over RS-232",
		Version: app.Version(),
		Description: "Read measurements of the Protek 506 DMM (1200 baud 7N2) and append them to a csv log." +
			"\n Without --port the serial ports of the host are probed until one answers with a decodable frame." +
			"\n Direct connection to the meter's DB-9 port typically requires a null-modem cable (Tx/Rx swapped).",
		UsageText: "p506log [--port <device>] [--file <csv>] [--delay <seconds>]" +
			"\n\nEXAMPLE:" +
			"\n\tlog to the default file using an explicit adapter" +
			"\n\t\tp506log --port /dev/ttyUSB0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Destination: &cfg.Flag.Port, Usage: "manual serial port override, e.g. COM3 or /dev/ttyUSB0"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Destination: &cfg.Flag.File, Usage: "output csv `FILE` (default: " + csvlog.DefaultFile + ")"},
			&cli.Float64Flag{Name: "delay", Aliases: []string{"d"}, Destination: &cfg.Flag.Delay, Usage: "polling interval in `SECONDS` (default: 0.2)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
		},
		Action: func(ctx *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
			defer func() {
				debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
				_ = cfg.Debug.File.Close()
			}()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				debug.InfoLog.Printf("closing app %s", app.Version())
				_ = a.Close()
			}()

			debug.InfoLog.Printf("starting app %s, logging to %s", app.Version(), cfg.DataFile)
			if err = a.Run(); err != nil {
				return err
			}

			// capture exit signals to ensure resources are released on exit.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			// wait for an os.Interrupt signal (CTRL C) or a session fault
			select {
			case sig := <-quit:
				debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
				return nil
			case err = <-a.Fault():
				return err
			}
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}
