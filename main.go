package main

import "reviewpulse/internal/app"

func main() {
	app.Main()
}
