package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/coldvault/internal/cli"
)

func main() {
	// A .env file is a convenience for operators; absence is not an error.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
