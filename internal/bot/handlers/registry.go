package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler bundles everything needed to wire one command: the
// matching rule, the handler itself and any middleware wrapped around it.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands builds the command table for the archive bot. All
// commands match at the start of the message only; /reset additionally runs
// behind RequireAdmin.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/ask"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "ask",
		Handler:     NewAskHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/recall"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "recall",
		Handler:     NewRecallHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/stats"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "stats",
		Handler:     NewStatsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	handlers["/reset"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "reset",
		Handler:     NewResetHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  []tgbot.Middleware{RequireAdmin(deps)},
	}

	return handlers
}
