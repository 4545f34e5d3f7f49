package main

import "github.com/encodeous/dvnet/cmd"

func main() {
	cmd.Execute()
}
