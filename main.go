package main

import (
	"os"

	"github.com/lazy-build/lazy/internal/cmd"
)

const lazyVersion = "0.1.0"

func main() {
	os.Exit(cmd.RunWithArgs(os.Args[1:], lazyVersion))
}
