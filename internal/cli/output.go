package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusColor(s model.JobStatus) string {
	switch s {
	case model.JobStatusPrinted:
		return green(string(s))
	case model.JobStatusFailed:
		return red(string(s))
	case model.JobStatusInProgress:
		return yellow(string(s))
	}
	return string(s)
}

func printBatch(w io.Writer, r model.BatchResult) {
	fmt.Fprintf(w, "processed %d  %s %d  %s %d  skipped %d\n",
		r.Processed, green("succeeded"), r.Succeeded, red("failed"), r.Failed, r.Skipped)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s\n", red("✗"), e)
	}
}

func tri(v *bool, good, bad string) string {
	switch {
	case v == nil:
		return yellow("unknown")
	case *v:
		return green(good)
	default:
		return red(bad)
	}
}

func printStatus(w io.Writer, addr string, s model.PrinterStatus) {
	fmt.Fprintf(w, "%s %s\n", bold("Printer"), addr)
	if !s.Connected {
		fmt.Fprintf(w, "  connection  %s (%s)\n", red("unreachable"), s.Error)
		return
	}
	fmt.Fprintf(w, "  connection  %s\n", green("ok"))
	fmt.Fprintf(w, "  online      %s\n", tri(s.Online, "yes", "no"))
	fmt.Fprintf(w, "  cover       %s\n", tri(s.CoverClosed, "closed", "open"))
	fmt.Fprintf(w, "  paper       %s\n", tri(s.PaperPresent, "present", "out"))
	nearEnd := tri(s.PaperNearEnd, "low", "ok")
	if s.PaperNearEnd != nil && *s.PaperNearEnd {
		nearEnd = yellow("low")
	}
	fmt.Fprintf(w, "  paper level %s\n", nearEnd)
	if s.RawStatusByte != nil {
		fmt.Fprintf(w, "  raw         status=0x%02X", *s.RawStatusByte)
		if s.RawPaperByte != nil {
			fmt.Fprintf(w, " paper=0x%02X", *s.RawPaperByte)
		}
		fmt.Fprintln(w)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "  note        %s\n", yellow(s.Error))
	}
	if s.Ready() {
		fmt.Fprintf(w, "  %s\n", green("ready"))
	} else {
		fmt.Fprintf(w, "  %s\n", red("needs attention"))
	}
}

func printJobs(w io.Writer, jobs []*model.PrintJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no jobs")
		return
	}
	fmt.Fprintf(w, "%-36s  %-12s  %-11s  %-8s  %s\n", "ID", "ORDER", "STATUS", "ATTEMPTS", "CREATED")
	fmt.Fprintln(w, strings.Repeat("─", 96))
	for _, j := range jobs {
		fmt.Fprintf(w, "%-36s  %-12s  %-11s  %-8d  %s\n",
			j.ID, j.OrderID, statusColor(j.Status), j.Attempts, j.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if j.ErrorMessage != nil {
			fmt.Fprintf(w, "    %s\n", red(*j.ErrorMessage))
		}
	}
}
