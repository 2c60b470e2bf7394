package main

import (
	"fmt"
	"os"

	"github.com/mcdev12/fieldofplay/go/internal/console"
)

func main() {
	if err := console.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
