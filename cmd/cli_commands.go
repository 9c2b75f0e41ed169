package cmd

import (
	"fmt"
	"io"
)

// commandDocs documentation info used for the help command.
type commandDocs struct {
	name    string
	params  string
	summary string
}

var cliCommandTable = []commandDocs{
	{name: "help", summary: "Show this help"},
	{name: "connect", params: "<host> <port>", summary: "Reconnect to another relay"},
	{name: "send", params: "<text...>", summary: "Send the rest of the line as one frame"},
	{name: "clear", summary: "Clear the screen"},
	{name: "quit", summary: "Leave the shell (alias: exit)"},
}

func cliCommandNames() []string {
	names := make([]string, 0, len(cliCommandTable)+1)
	for _, c := range cliCommandTable {
		names = append(names, c.name)
	}
	return append(names, "exit")
}

func cliHelp(w io.Writer) {
	fmt.Fprintln(w, "Any other line is sent as one frame. Prefix a line with N to send it N times.")
	fmt.Fprintln(w)
	for _, c := range cliCommandTable {
		usage := c.name
		if c.params != "" {
			usage += " " + c.params
		}
		fmt.Fprintf(w, "  %-24s %s\n", usage, c.summary)
	}
}
