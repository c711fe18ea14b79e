// schedcheck lints a schedule file: it prints every parsed entry with its
// next firing time and reports rejected lines, so a schedule can be checked
// before it ships to the box.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"autoplant/internal/schedule"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s <schedule-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	sched, lineErrs, err := schedule.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "schedcheck: %v\n", err)
		for _, le := range lineErrs {
			fmt.Fprintf(os.Stderr, "  %v\n", le)
		}
		os.Exit(1)
	}

	now := time.Now()
	for _, e := range sched.Entries() {
		fmt.Printf("%-40s next %s\n", e, e.Next(now).Format(time.RFC3339))
	}

	if len(lineErrs) > 0 {
		fmt.Fprintf(os.Stderr, "%d rejected line(s):\n", len(lineErrs))
		for _, le := range lineErrs {
			fmt.Fprintf(os.Stderr, "  %v\n", le)
		}
		os.Exit(1)
	}
}
