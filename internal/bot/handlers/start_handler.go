package handlers

import "github.com/go-telegram/bot"

// NewStartHandler returns the /start handler, which greets the chat with the
// configured welcome text.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return staticHandler{deps: deps, name: "start", reply: deps.Config.Messages.Welcome}.Handle
}
