package main

import (
	"github.com/dmitrijs2005/votekeeper/internal/client/cli"
)

func main() {
	cli.Execute()
}
