package main

import "github.com/kdbxgo/kdbxvault/cmd"

func main() {
	cmd.Execute()
}
