package main

import (
	"github.com/freemoonfaucet/gas-faucet/cmd"
)

func main() {
	cmd.Execute()
}
