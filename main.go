package main

import "github.com/nextlevelbuilder/lingobot/cmd"

func main() {
	cmd.Execute()
}
