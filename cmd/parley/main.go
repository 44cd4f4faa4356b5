// Command parley runs the configured platform bots behind one HTTP server:
// webhook receivers for Telegram, Twitter, and WhatsApp, and the webview
// WebSocket endpoint.
//
//	PARLEY_TELEGRAM_TOKEN=... PARLEY_STATE_DRIVER=sqlite parley serve --echo
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
