package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/abrezinsky/ecobingo/internal/browser"
	"github.com/abrezinsky/ecobingo/internal/logger"
)

// stdinIsTerminal reports whether console commands can be read
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// console handles operator commands typed into the server terminal
type console struct {
	log      *logger.SlogLogger
	boardURL string
	open     func(url string) error
	quit     func()
}

func newConsole(appLog *logger.SlogLogger, baseURL string, quit func()) *console {
	return &console{
		log:      appLog,
		boardURL: strings.TrimSuffix(baseURL, "/") + "/api/leaderboard",
		open:     browser.Open,
		quit:     quit,
	}
}

// printConsoleHelp displays all available console commands
func printConsoleHelp() {
	fmt.Printf("%s%s  Console commands (type and press Enter):%s\n", bold, green, reset)
	fmt.Printf("    %so%s      - Open the leaderboard in a browser\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

// listen reads one command per line until quit or EOF
func (c *console) listen(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !c.run(strings.ToLower(strings.TrimSpace(scanner.Text()))) {
			return
		}
	}
}

// run executes cmd and reports whether to keep listening
func (c *console) run(cmd string) bool {
	switch cmd {
	case "":
	case "o":
		fmt.Printf("%sOpening %s...%s\n", cyan, c.boardURL, reset)
		if err := c.open(c.boardURL); err != nil {
			fmt.Printf("%sError opening browser: %v%s\n", red, err, reset)
		}
	case "h":
		if c.log.IsHTTPLoggingEnabled() {
			c.log.DisableHTTPLogging()
			fmt.Printf("%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			c.log.EnableHTTPLogging()
			fmt.Printf("%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		next := nextLogLevel(c.log.GetLevel().String())
		c.log.SetLevel(logger.ParseLevel(next))
		fmt.Printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
	case "q":
		c.quit()
		return false
	case "?":
		printConsoleHelp()
	default:
		fmt.Printf("%sUnknown command %q (? for help)%s\n", red, cmd, reset)
	}
	return true
}

// nextLogLevel cycles debug -> info -> warn -> error -> debug
func nextLogLevel(current string) string {
	switch current {
	case "DEBUG":
		return "info"
	case "INFO":
		return "warn"
	case "WARN":
		return "error"
	case "ERROR":
		return "debug"
	default:
		return "info"
	}
}
