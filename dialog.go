package main

import "github.com/sqweek/dialog"

var errCancelled = dialog.ErrCancelled

// askForROM opens a native file dialog to select a ROM.
func askForROM() (string, error) {
	return dialog.File().
		Title("Open ROM").
		Filter("GameBoy ROMs (*.gb, *.gbc, *.bin)", "gb", "gbc", "bin").
		Filter("Archives (*.zip, *.7z, *.gz, *.br)", "zip", "7z", "gz", "br").
		Load()
}
