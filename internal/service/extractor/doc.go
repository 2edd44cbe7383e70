// Package extractor unpacks a staged 7-Zip or ZIP archive next to itself and
// removes the archive once every entry has been written.
package extractor
