// Package scanner runs the poll cycle that forwards unread mail to the chat.
//
// Each cycle lists unread messages lacking the processed label, then for each
// message in turn: fetches it, drops skip-listed senders, extracts the text
// and images, strips quoted replies, delivers the text followed by every
// image, and finally applies the processed label. The label is the only
// state written back, so a crash between delivery and labeling leads to a
// second delivery on the next cycle rather than a lost message.
package scanner
