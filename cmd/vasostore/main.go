// Command vasostore is the CLI front end for the persistence engine.
package main

import "github.com/vasolab/vasostore/internal/cli"

func main() {
	cli.Execute()
}
