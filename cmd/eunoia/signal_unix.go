//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals trigger a graceful shutdown. Container runtimes and
// systemd stop services with SIGTERM.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
