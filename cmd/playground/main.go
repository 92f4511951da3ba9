package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFile = "playgroundd.pid"
	logFile = "playgroundd.log"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart(args)
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs(args)
	case "config":
		err = cmdConfig()
	case "levels":
		err = cmdLevels()
	case "level":
		err = cmdLevel(args)
	case "run":
		err = cmdRun(args)
	case "check":
		err = cmdCheck(args)
	case "sample":
		err = cmdSample(args)
	case "complete":
		err = cmdComplete(args)
	case "reset":
		err = cmdReset(args)
	case "progress":
		err = cmdProgress()
	case "kata":
		err = cmdKata(args)
	case "events":
		err = cmdEvents(args)
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("playground %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Playground - Learn by levels

Usage:
  playground <command> [arguments]

Setup Commands:
  init                        Initialize the playground (first-time setup)
  config                      Show current configuration

Daemon Commands:
  start [--ephemeral]         Start the playground daemon
  stop                        Stop the playground daemon
  status                      Show daemon status
  logs [bytes]                View the tail of the daemon log

Level Commands:
  levels                      List levels with progress
  level <n>                   Show a level's exercises
  run <n> <id>                Simulate running an exercise
  check <n> <id> field=value  Check an answer (field=@file reads a file)
  sample <n> <id>             Show an exercise's sample solution
  complete <n>                Finish a level
  reset <n>                   Reset a level to its starting state
  progress                    Show overall progress

Kata Commands:
  kata fizzbuzz <n>           Print FizzBuzz from 1 to n

Integration Commands:
  mcp                         Start MCP server on stdio
  events [count]              Print progress events from the queue

Other:
  help                        Show this help message
  version                     Show version information

Examples:
  playground start
  playground level 3
  playground run 3 1
  playground check 3 1 code=@connect.go driver=postgres
  playground complete 3`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
