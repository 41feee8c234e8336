package main

import (
	"rate-index-oracle/internal/cli"
)

func main() {
	cli.Execute()
}
