package main

import "github.com/anshumansp/Business-Consultant-Agent/internal/cli"

func main() {
	cli.Execute()
}
