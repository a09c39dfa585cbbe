package main

import "phonecase-backend/cmd"

func main() {
	cmd.Run()
}
