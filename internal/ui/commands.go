package ui

import (
	"strings"

	"github.com/bz888/sagan/internal/chat"
)

const (
	cmdHelp     = "/help"
	cmdModels   = "/models"
	cmdModel    = "/model"
	cmdResearch = "/research"
	cmdBrowse   = "/browse"
	cmdNew      = "/new"
	cmdDebug    = "/debug"
	cmdBye      = "/bye"
)

var commands = []struct {
	name  string
	usage string
	help  string
}{
	{cmdHelp, "/help", "Display this help message"},
	{cmdModels, "/models", "Pick a model from the list"},
	{cmdModel, "/model <id>", "Switch to the model <id>"},
	{cmdResearch, "/research", "Toggle deep research mode"},
	{cmdBrowse, "/browse", "Toggle browsing mode"},
	{cmdNew, "/new", "Start a new thread (also Ctrl-N)"},
	{cmdDebug, "/debug", "Toggle the debug console"},
	{cmdBye, "/bye", "Exit the application (also /quit, /exit)"},
}

var aliases = map[string]string{
	"/quit": cmdBye,
	"/exit": cmdBye,
}

type command struct {
	name string
	arg  string
}

// parseCommand recognises a shell command. Anything else is a chat message.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}

	name, arg, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, c := range commands {
		if c.name == name {
			return command{name: name, arg: strings.TrimSpace(arg)}, true
		}
	}
	return command{}, false
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Here are some commands you can use:")
	for _, c := range commands {
		b.WriteString("\n- ")
		b.WriteString(c.usage)
		b.WriteString(": ")
		b.WriteString(c.help)
	}
	return b.String()
}

// validModel accepts the catalog ids and any local ollama:<name> model.
func validModel(id string) bool {
	if _, ok := chat.FindModel(id); ok {
		return true
	}
	name, ok := strings.CutPrefix(id, "ollama:")
	return ok && name != ""
}
