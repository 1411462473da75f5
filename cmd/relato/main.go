package main

import (
	"flag"
	"fmt"
	"os"

	"relato/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "relato: %v\n", err)
		os.Exit(1)
	}
}
