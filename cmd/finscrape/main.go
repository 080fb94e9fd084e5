package main

import "github.com/finscrape/finscrape/internal/cli"

func main() {
	cli.Execute()
}
