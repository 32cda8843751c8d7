package main

import "github.com/samhoque/apikit/internal/cli"

func main() {
	cli.Execute()
}
