// Package downloader streams a remote archive into a local staging file.
package downloader
