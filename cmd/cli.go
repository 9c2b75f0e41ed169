package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fzft/go-frame-relay/client"
	"github.com/fzft/go-frame-relay/deps/linenoise"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	RelayCliHisFileEnv     = "RELAYCLI_HISTFILE"
	RelayCliHisFileDefault = ".relaycli_history"
	RelayCliDialTimeout    = 5 * time.Second
)

type CliConnectFlag int

const (
	CCForce CliConnectFlag = 1 << iota // Re-connect if already connected.
	CCQuiet                            // Don't show non-error messages.
)

type CliConnInfo struct {
	hostIp   string
	hostPort int
}

type RelayCliCfg struct {
	connInfo    *CliConnInfo
	interactive bool
	prompt      string
	// linger keeps printing relayed frames this long after piped input ends.
	linger time.Duration
}

// RelayCli is an interactive relay client. Lines typed at the prompt are sent as frames and
// every frame relayed back is printed as it arrives.
type RelayCli struct {
	config   *RelayCliCfg
	conn     *client.Client
	recvDone chan struct{}
	line     *linenoise.LineNoise

	mu     sync.Mutex // guards out
	out    io.Writer
	errOut io.Writer
}

func NewRelayCli(host string, port int, out, errOut io.Writer) *RelayCli {
	cli := &RelayCli{
		config: &RelayCliCfg{
			connInfo: &CliConnInfo{hostIp: host, hostPort: port},
		},
		out:    out,
		errOut: errOut,
	}
	cli.cliRefreshPrompt()
	return cli
}

func cliCmd() *cobra.Command {
	var (
		host   string
		port   int
		linger time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cli",
		Short: "Interactive relay client",
		Long: `Open an interactive shell against a relay. Each line is sent as one frame and
every relayed frame is printed as it arrives. When stdin is not a terminal,
each input line is sent and the shell exits at end of input.

Type "help" at the prompt for the list of shell commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := NewRelayCli(host, port, cmd.OutOrStdout(), cmd.ErrOrStderr())
			cli.config.linger = linger
			return cli.Run(os.Stdin)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "127.0.0.1", "Server hostname")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "Server port")
	cmd.Flags().DurationVar(&linger, "linger", 0, "With piped input, keep printing relayed frames for this long after the input ends")
	return cmd
}

func (cli *RelayCli) Run(in io.Reader) error {
	if err := cli.connect(0); err != nil {
		return err
	}
	defer cli.disconnect()

	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return cli.repl()
	}
	return cli.pipe(in)
}

func (cli *RelayCli) addr() string {
	return net.JoinHostPort(cli.config.connInfo.hostIp, strconv.Itoa(cli.config.connInfo.hostPort))
}

// connect to the relay
// flag: CCForce: The connection is performed even if there is already a connected socket.
//
//	CCQuiet: Don't print errors if connection fails
func (cli *RelayCli) connect(flag CliConnectFlag) error {
	if cli.conn != nil && flag&CCForce == 0 {
		return nil
	}
	cli.disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), RelayCliDialTimeout)
	defer cancel()
	c, err := client.Dial(ctx, cli.addr())
	if err != nil {
		if flag&CCQuiet == 0 {
			cli.printErr("Could not connect to relay at %s: %s\n", cli.addr(), err)
		}
		return err
	}

	cli.conn = c
	cli.recvDone = make(chan struct{})
	go cli.receive(c, cli.recvDone)
	return nil
}

func (cli *RelayCli) disconnect() {
	if cli.conn == nil {
		return
	}
	cli.conn.Close()
	<-cli.recvDone
	cli.conn = nil
}

func (cli *RelayCli) receive(c *client.Client, done chan struct{}) {
	defer close(done)
	for {
		payload, err := c.Receive()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				cli.printErr("Error: %s\n", err)
			}
			return
		}
		cli.printf("%s\n", formatPayload(payload))
	}
}

func formatPayload(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	return strconv.Quote(string(payload))
}

func (cli *RelayCli) printf(format string, args ...any) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *RelayCli) printErr(format string, args ...any) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprintf(cli.errOut, format, args...)
}

func (cli *RelayCli) repl() error {
	cli.config.interactive = true
	cli.line = linenoise.New(cliCommandNames())
	defer func() {
		cli.line.Close()
		cli.line = nil
	}()

	historyFile := getDotfilePath(RelayCliHisFileEnv, RelayCliHisFileDefault)
	if historyFile != "" {
		cli.line.HistoryLoad(historyFile)
	}

	for {
		prompt := cli.config.prompt
		if cli.conn == nil {
			prompt = "not connected> "
		}
		line, err := cli.line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, linenoise.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cli.line.AppendHistory(line)
		if historyFile != "" {
			cli.line.HistorySave(historyFile)
		}
		if cli.handleLine(line) {
			return nil
		}
	}
}

func (cli *RelayCli) pipe(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), client.DefaultMaxPayload)
	for scanner.Scan() {
		if cli.handleLine(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if cli.config.linger > 0 {
		time.Sleep(cli.config.linger)
	}
	return nil
}

// handleLine runs one shell line and reports whether the shell should exit.
func (cli *RelayCli) handleLine(line string) bool {
	argv := cli.splitArgs(line)
	argc := len(argv)
	if argc == 0 {
		return false
	}

	// check if we have a repeat command option and need to skip the first arg
	repeat, err := strconv.Atoi(argv[0])
	skipargs := 0
	if argc > 1 && err == nil {
		if repeat <= 0 {
			cli.printf("Invalid relay-cli repeat command option value.\n")
			return false
		}
		skipargs = 1
	} else {
		repeat = 1
	}

	cmd := strings.ToLower(argv[skipargs])
	switch {
	case cmd == "quit" || cmd == "exit":
		return true
	case cmd == "help" && argc == 1:
		cli.mu.Lock()
		cliHelp(cli.out)
		cli.mu.Unlock()
	case cmd == "connect" && argc == 3:
		port, err := strconv.Atoi(argv[2])
		if err != nil {
			cli.printf("Invalid port number\n")
			return false
		}
		cli.config.connInfo.hostIp = argv[1]
		cli.config.connInfo.hostPort = port
		cli.cliRefreshPrompt()
		cli.connect(CCForce)
	case cmd == "clear" && argc == 1:
		if cli.line != nil {
			cli.line.ClearScreen(cli.out)
		}
	default:
		payload := skipFields(line, skipargs)
		if cmd == "send" {
			payload = skipFields(payload, 1)
		}
		cli.send([]byte(payload), repeat)
	}
	return false
}

func (cli *RelayCli) send(payload []byte, repeat int) {
	if cli.conn == nil {
		cli.printErr("Error: not connected\n")
		return
	}
	for i := 0; i < repeat; i++ {
		if err := cli.conn.Send(payload); err != nil {
			cli.printErr("Error: %s\n", err)
			cli.disconnect()
			return
		}
	}
}

func (cli *RelayCli) splitArgs(line string) []string {
	return strings.Fields(line)
}

// skipFields drops the first n whitespace separated words of line, keeping the spacing of
// what remains.
func skipFields(line string, n int) string {
	rest := strings.TrimLeft(line, " \t")
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	return rest
}

func (cli *RelayCli) cliRefreshPrompt() {
	cli.config.prompt = fmt.Sprintf("relay://%s> ", cli.addr())
}

func getDotfilePath(envOverride, dotFilename string) string {
	var dotPath string

	path := os.Getenv(envOverride)
	if path != "" {
		if path == "/dev/null" {
			return ""
		}
		dotPath = path
	} else {
		home := os.Getenv("HOME")
		if home != "" {
			dotPath = fmt.Sprintf("%s/%s", home, dotFilename)
		}
	}
	return dotPath
}
