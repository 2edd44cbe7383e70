// Package updater runs the PCSX2 update pipeline.
//
// A run detects the installation in the working directory, makes sure the
// emulator is not running, resolves the newest build, downloads and extracts
// its archive, and merges the extracted folder over the installation. Every
// step logs a status line before it starts and the first failure aborts the run.
package updater
