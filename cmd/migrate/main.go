package main

import "github.com/aqasim81/schemaledger/internal/cli"

func main() {
	cli.Execute()
}
