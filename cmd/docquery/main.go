package main

import "github.com/nimburion/docquery/pkg/cli"

func main() {
	cli.Execute(cli.NewCommand(cli.Options{
		Name:        "docquery",
		Description: "Query and edit document store collections",
	}))
}
