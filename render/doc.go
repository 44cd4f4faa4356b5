// Package render turns a message element tree into the flat, ordered list
// of segments that platform job factories consume.
//
// A tree is built from a handful of node constructors:
//
//	render.Fragment(
//	    render.Text("Hello "),
//	    render.Text("world"),
//	    render.Break(),
//	    render.Unit(telegram.Photo{URL: "https://..."}),
//	)
//
// which the Default renderer flattens into:
//
//	text "Hello world", break, unit telegram.Photo{...}
//
// Unit and Part values are opaque to this package; only the platform that
// produced them knows how to turn them into API calls.
package render
