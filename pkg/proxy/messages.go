package proxy

import (
	"go.minekube.com/common/minecraft/color"
	"go.minekube.com/common/minecraft/component"
)

// Texts shown to players. They are English only.
var (
	alreadyConnected              = &component.Text{Content: "You are already connected to this proxy!"}
	alreadyInProgress             = &component.Text{Content: "You are already connecting to a server!"}
	internalServerConnectionError = &component.Text{Content: "Internal server connection error"}
	noReason                      = &component.Text{Content: "You were denied access to this server."}

	noAvailableServers = red("No available server.")
	movedToNewServer   = red("The server you were on kicked you: ")
	invalidPlayerName  = red("Your username has an invalid format.")
	proxyBehindProxy   = red("Running a proxy behind this proxy is not supported.")
	loginTooFast       = red("You are logging in too fast, please calm down and retry.")

	unableAuthWithMojang = red("Unable to authenticate you with Mojang.\nPlease try again!")

	onlineModeOnly = red(`This server only accepts connections from online-mode clients.

Did you change your username?
Restart your game or sign out of Minecraft, sign back in, and try again.`)

	velocityIpForwardingFailure = &component.Text{
		Content: "Your server did not send a forwarding request to the proxy. Is velocity forwarding set up correctly?",
	}

	modernClientsOnly = &component.Text{Content: "This server is only compatible with versions 1.13 and above."}
)

func red(content string) *component.Text {
	return &component.Text{Content: content, S: component.Style{Color: color.Red}}
}
