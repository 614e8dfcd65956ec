package main

import "github.com/KaramelBytes/instadash-cli/cmd"

func main() {
	cmd.Execute()
}
