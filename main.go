package main

import (
	"github.com/qubi-project/qubi/cmd/cli"
)

func main() {
	cli.Execute()
}
