// Package main implements the tvstream server and command-line tool.
package main

import "github.com/savid/tvstream/cmd"

func main() {
	cmd.Execute()
}
