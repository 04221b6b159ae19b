// Package language normalizes language codes and detects the language of a
// transcript when the recognizer does not report one.
//
// Codes are parsed as BCP 47 tags and reduced to their ISO 639-1 base, so
// "en-US", "eng", and "EN" all become "en". Detection runs a trigram model
// over transcript text and reports whether the guess is reliable.
package language
