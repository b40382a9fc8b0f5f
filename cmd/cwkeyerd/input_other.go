//go:build !linux

package main

import "os"

// readInputEventsEpoll falls back to one blocking reader per device.
func readInputEventsEpoll(files []*os.File, wake int, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}

func newWakeFD() (int, func(), func(), error) {
	return -1, func() {}, func() {}, nil
}
