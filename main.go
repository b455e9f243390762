package main

import "github.com/ValentinKolb/feedstore/cmd"

func main() {
	cmd.Execute()
}
