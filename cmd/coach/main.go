package main

import "github.com/chris/coach/cmd/coach/cmd"

func main() {
	cmd.Execute()
}
