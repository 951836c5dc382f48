package main

import "github.com/patchwell/sidechat/cmd"

func main() {
	cmd.Execute()
}
