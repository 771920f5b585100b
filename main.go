package main

import "github.com/jmehdipour/faucet-gateway/cmd"

func main() {
	cmd.Execute()
}
