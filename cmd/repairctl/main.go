package main

import "repair-dashboard/internal/cli"

func main() {
	cli.Execute()
}
