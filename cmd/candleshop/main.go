package main

import "candle-shop/commands"

func main() {
	commands.Execute()
}
