// Command clickpoints inspects and maintains ClickPoints project files.
package main

import "github.com/fabrylab/clickpoints/internal/cli"

func main() {
	cli.Execute()
}
