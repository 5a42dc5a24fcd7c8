// Command opctl invokes operations on a gateway from the command line.
//
//	opctl query User.Get --vars '{"id":7}'
//	opctl subscribe Chat.Messages --framing line
package main

import (
	"context"
	"os"
)

func main() {
	cmd, a := newRootCmd()
	if err := execute(context.Background(), cmd, a); err != nil {
		os.Exit(1)
	}
}
