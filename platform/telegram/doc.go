// Package telegram connects parley to the Telegram Bot API.
//
// Every chat gets its own key, "telegram.<chat id>", so the messages of a
// rendered reply arrive in order while different chats are served in
// parallel. Text is sent with sendMessage and split at Telegram's 4096
// character limit; Photo and Document units upload inline as multipart
// requests, or by file id once the upload was cached through an
// asset.Manager. Button parts attach an inline keyboard to the message
// they follow.
//
//	bot, err := telegram.New(token, telegram.WithAssets(store))
//	res, err := bot.Render(ctx, telegram.ChatID(42), render.Fragment(
//		render.Text("hello"),
//		render.Part(telegram.Button{Text: "Docs", URL: "https://example.com"}),
//	))
package telegram
