// Entry point; command handling lives in internal/cli.
package main

import "github.com/iliyamo/study-room-seats/internal/cli"

func main() {
	cli.Execute()
}
