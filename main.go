package main

import "github.com/Origin-Inc/e-invoicing-backend/cmd"

func main() {
	cmd.Execute()
}
