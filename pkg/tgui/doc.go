// Package tgui builds Telegram HTML message bodies.
//
// Values of type H are already escaped. Build them from Esc and the tag
// helpers; never concatenate user or page text into an H directly.
package tgui
