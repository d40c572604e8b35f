package main

import (
	"log"
	"os"

	"github.com/chansereyvath/lessonsearch/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Printf("lessonsearch: %v", err)
		os.Exit(1)
	}
}
