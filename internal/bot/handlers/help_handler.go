package handlers

import "github.com/go-telegram/bot"

// NewHelpHandler returns the /help handler, which lists the available
// commands.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return staticHandler{deps: deps, name: "help", reply: deps.Config.Messages.Help}.Handle
}
