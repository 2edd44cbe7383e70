// Package state remembers which build was installed into a directory.
//
// The FileRepository keeps a small YAML file next to the installation and
// exposes a Repository interface that the updater depends on.
package state
