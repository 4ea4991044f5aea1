// Command archive-compare compares two zip archives in-process and prints
// the same JSON document as the Python analyzer, so the API can point
// analyzer.command at it:
//
//	archive-compare compare --archive1 a.zip --archive2 b.zip --format json
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
