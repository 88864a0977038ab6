// Package intent turns raw command text into structured intents.
//
// Two input forms are supported: structured commands (light_on kitchen,
// vacuum_dock) tokenised with shell-style quoting, and free text in Russian
// or English matched against static pattern tables. Matching normalises
// case and diacritics, strips filler words, then tries exact and stem
// matches before falling back to bounded edit-distance fuzzy matching.
//
// Parsing is pure: no I/O, no shared mutable state. Uncertain input is
// never guessed at. Multiple equally good readings yield an ambiguous
// parse error, and matches below the configured confidence threshold
// yield a low-confidence error.
package intent
