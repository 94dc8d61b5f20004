package main

import "github.com/iamvkosarev/whatsapp-ai-bridge/cmd"

func main() {
	cmd.Execute()
}
