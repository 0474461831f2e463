package main

import "github.com/QRLogin-sec/QRLChecker/cmd"

func main() {
	cmd.Execute()
}
