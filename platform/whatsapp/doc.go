// Package whatsapp connects parley to the WhatsApp Business Cloud API.
//
// Each conversation between a business number and a customer gets its
// own key. Text becomes a text message; Image, Document, Audio, and Video
// units upload their file through the media endpoint first and reference
// the returned media id. A unit with an Asset name tags its upload so
// later units of the same conversation reuse the id, and, when the bot
// has an asset store, the id is persisted so later renders skip the
// upload entirely. ReplyButton parts turn the preceding text into an
// interactive button message.
package whatsapp
