package main

import "stream-scraper/cmd"

func main() {
	cmd.Execute()
}
