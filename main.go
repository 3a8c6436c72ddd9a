package main

import "github.com/ValentinKolb/dAFT/cmd"

func main() {
	cmd.Execute()
}
