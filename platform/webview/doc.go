// Package webview serves chat conversations to browser or embedded
// clients over WebSocket.
//
// A client connects, authenticates with its first frame (an API key or a
// signed JWT), and subscribes to threads. Rendered replies are published
// to every connection subscribed to the target Thread, or to a single
// Connection, as event frames. Frames are JSON by default; clients may
// negotiate MessagePack in the auth frame.
//
//	bot := webview.New(webview.WithAuthenticator(webview.NewJWTAuthenticator(secret, "parley")))
//	router.Handle("/webview", bot.Receiver(handler))
//	res, err := bot.Render(ctx, webview.Thread{ID: "support-42"}, render.Text("hello"))
//
// A Render to a thread nobody is subscribed to fails with ErrNoConnection.
package webview
