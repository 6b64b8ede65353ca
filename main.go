package main

import "github.com/terauss/Monad-Voting-App/cmd"

func main() {
	cmd.Execute()
}
