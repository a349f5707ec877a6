package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/app"
	"github.com/gmsas95/dosetrack/internal/cli"
	"github.com/gmsas95/dosetrack/internal/config"
	"github.com/gmsas95/dosetrack/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			cli.HandleConfigCommand(os.Args[2:])
			return
		case "help", "--help", "-h":
			cli.PrintExtendedHelp()
			return
		case "version", "--version", "-v":
			fmt.Printf("Dosetrack version %s\n", version)
			return
		}
	}

	command, args := splitCommand()

	switch command {
	case "serve", "":
		application := initApp(true)
		application.RunServer()
	case "add":
		application := initApp(false)
		defer application.Close()
		cli.HandleAddCommand(application, args)
	case "list":
		application := initApp(false)
		defer application.Close()
		cli.HandleListCommand(application, args)
	case "today":
		application := initApp(false)
		defer application.Close()
		cli.HandleTodayCommand(application)
	case "take":
		application := initApp(false)
		defer application.Close()
		cli.HandleTakeCommand(application, args)
	case "skip":
		application := initApp(false)
		defer application.Close()
		cli.HandleSkipCommand(application, args)
	case "stats":
		application := initApp(false)
		defer application.Close()
		cli.HandleStatsCommand(application, args)
	default:
		fmt.Printf("Unknown command %q\n\n", command)
		cli.PrintExtendedHelp()
		os.Exit(1)
	}
}

// splitCommand peels the subcommand off os.Args and parses the
// remaining flags. Flags go after the subcommand, positionals last:
// dosetrack take --data /tmp/dt 42
func splitCommand() (string, []string) {
	args := os.Args[1:]
	command := ""
	if len(args) > 0 && args[0][0] != '-' {
		command = args[0]
		args = args[1:]
	}
	flag.CommandLine.Parse(args)
	return command, flag.CommandLine.Args()
}

func initApp(daemon bool) *app.App {
	var logger *zap.Logger
	var err error
	if daemon {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cli.Version = version

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	application, err := app.New(cfg, st, logger, version)
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}

	return application
}
