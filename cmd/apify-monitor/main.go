package main

import "github.com/JakeFAU/apify-webhook-monitor/cmd"

func main() {
	cmd.Execute()
}
