// Package console asks yes/no questions and waits for a keypress.
//
// When input is an interactive terminal it is switched to raw mode for the
// duration of a single read so answers do not need Enter. Other readers are
// consumed byte by byte and end of input counts as "no".
package console
