// Command gildash-probe is the CLI entrypoint wired to internal/cli.
package main

import "github.com/zipbul/gildash/internal/cli"

func main() {
	cli.Execute()
}
