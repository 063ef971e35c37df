package main

import (
	"fmt"

	"github.com/pterm/pterm"
)

// startTransfer begins an indeterminate pterm spinner for a network
// pack transfer. Real byte/object counts aren't known until the transfer
// finishes (neither FetchPack nor PushPack streams progress), so this
// mirrors real git's two-phase reporting: an indeterminate spinner while
// the request is in flight, followed by a one-line summary once the final
// counts are known.
func startTransfer(label string) *pterm.SpinnerPrinter {
	sp, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(label)
	if err != nil {
		return nil
	}
	return sp
}

// finishTransfer stops sp (if it started) and prints a one-line summary in
// the shape of real git's "Receiving/Writing objects: 100% (n/n), size".
func finishTransfer(sp *pterm.SpinnerPrinter, label string, objects int, totalBytes int) {
	summary := fmt.Sprintf("%s: 100%% (%d/%d), %s", label, objects, objects, humanizeBytes(totalBytes))
	if sp != nil {
		sp.Success(summary)
		return
	}
	pterm.Success.Println(summary)
}

func humanizeBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := int64(n) / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
