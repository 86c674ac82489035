package analysis

import (
	"fmt"
	"sort"
)

// LargeBundleBytes is the bundle size above which Analyze warns
const LargeBundleBytes = 1024 * 1024

// AnalysisResult contains the analyzed bundle information
type AnalysisResult struct {
	Name       string         `json:"name" yaml:"name"`
	TotalBytes int            `json:"total_bytes" yaml:"total_bytes"`
	InputFiles []FileAnalysis `json:"input_files" yaml:"input_files"`
	Warnings   []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FileAnalysis contains analysis for a single file
type FileAnalysis struct {
	Path          string  `json:"path" yaml:"path"`
	Bytes         int     `json:"bytes" yaml:"bytes"`
	BytesInOutput int     `json:"bytes_in_output" yaml:"bytes_in_output"`
	Percentage    float64 `json:"percentage" yaml:"percentage"`
	ImportCount   int     `json:"import_count" yaml:"import_count"`
	IsEntry       bool    `json:"is_entry,omitempty" yaml:"is_entry,omitempty"`
}

// Analyze derives per-file size shares from a metafile
func Analyze(meta *Metafile, name string) *AnalysisResult {
	result := &AnalysisResult{Name: name}

	// Find the main output (there is only one for a single entry point)
	for _, output := range meta.Outputs {
		result.TotalBytes = output.Bytes

		for inputPath, contrib := range output.Inputs {
			inputInfo, ok := meta.Inputs[inputPath]
			if !ok {
				continue
			}

			percentage := 0.0
			if result.TotalBytes > 0 {
				percentage = float64(contrib.BytesInOutput) / float64(result.TotalBytes) * 100
			}

			result.InputFiles = append(result.InputFiles, FileAnalysis{
				Path:          inputPath,
				Bytes:         inputInfo.Bytes,
				BytesInOutput: contrib.BytesInOutput,
				Percentage:    percentage,
				ImportCount:   len(inputInfo.Imports),
				IsEntry:       inputPath == output.EntryPoint,
			})
		}

		// Only process first output
		break
	}

	// Largest first, path as tie breaker for stable output
	sort.Slice(result.InputFiles, func(i, j int) bool {
		a, b := result.InputFiles[i], result.InputFiles[j]
		if a.BytesInOutput != b.BytesInOutput {
			return a.BytesInOutput > b.BytesInOutput
		}
		return a.Path < b.Path
	})

	if result.TotalBytes > LargeBundleBytes {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("bundle is %s, consider splitting large modules", formatBytesHuman(result.TotalBytes)))
	}

	return result
}
