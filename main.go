package main

import "github.com/sift-lang/sift/cmd"

func main() {
	cmd.Execute()
}
