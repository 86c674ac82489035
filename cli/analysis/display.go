package analysis

import (
	"fmt"
	"io"
	"strings"
)

// DisplayAnalysis prints the bundle analysis in a formatted way. Warnings
// are left to the caller.
func DisplayAnalysis(w io.Writer, result *AnalysisResult, showDetails bool) {
	_, _ = fmt.Fprintf(w, "\n=== Bundle Analysis: %s ===\n", result.Name)
	_, _ = fmt.Fprintf(w, "Total bundle size: %s\n", formatBytesHuman(result.TotalBytes))
	_, _ = fmt.Fprintf(w, "Modules: %d\n", len(result.InputFiles))

	if len(result.InputFiles) > 0 {
		_, _ = fmt.Fprintln(w, "\nBundle breakdown:")

		// Determine how many files to show
		maxFiles := 10
		if showDetails {
			maxFiles = len(result.InputFiles)
		}

		// Calculate max path length for alignment
		maxPathLen := 0
		for i, file := range result.InputFiles {
			if i >= maxFiles {
				break
			}
			displayPath := truncatePath(displayName(file), 50)
			if len(displayPath) > maxPathLen {
				maxPathLen = len(displayPath)
			}
		}

		for i, file := range result.InputFiles {
			if i >= maxFiles {
				remaining := len(result.InputFiles) - maxFiles
				_, _ = fmt.Fprintf(w, "  ... and %d more files\n", remaining)
				break
			}

			displayPath := truncatePath(displayName(file), 50)
			padding := strings.Repeat(" ", maxPathLen-len(displayPath))
			_, _ = fmt.Fprintf(w, "  %s%s  %8s  %5.1f%%\n",
				displayPath,
				padding,
				formatBytesHuman(file.BytesInOutput),
				file.Percentage,
			)
		}
	}

	_, _ = fmt.Fprintln(w)
}

func displayName(file FileAnalysis) string {
	if file.IsEntry {
		return file.Path + " <entry>"
	}
	return file.Path
}

// formatBytesHuman formats bytes in human-readable format
func formatBytesHuman(bytes int) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// truncatePath shortens a path if it's too long
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
