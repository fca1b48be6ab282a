// =============================================================================
// Mission Sheet Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Atomic replacement of the output file
//   - Archival of the previous output before it is replaced
//   - Archive retention
//   - Run summary reports
//
// ARCHIVAL STRATEGY:
//   - The previous output is copied to archive_dir before a new one is written
//   - Archived copies are named <original>_<timestamp>_<uuid>.json
//   - Archives older than archive_retention are removed after each archive
//   - Failed runs never touch the output or the archive
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles the output-side file operations of a run.
type FileManager struct {
	// OutputPath is the missions file a clean run replaces.
	OutputPath string

	// ArchiveDir receives copies of previous outputs. Empty disables archiving.
	ArchiveDir string

	// ReportDir receives run summaries. Empty disables summaries.
	ReportDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/01/15/missions_20240115_143022_<uuid>.json
	UseTimestampSubdirs bool
}

// NewFileManager creates a new FileManager with the specified paths.
func NewFileManager(outputPath, archiveDir, reportDir string) *FileManager {
	return &FileManager{
		OutputPath: outputPath,
		ArchiveDir: archiveDir,
		ReportDir:  reportDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all configured directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{filepath.Dir(fm.OutputPath), fm.ArchiveDir, fm.ReportDir}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteFileAtomic writes data to a temporary file next to path and renames it
// over path, so readers never observe a partially written file.
// Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveOutputFile copies the current output file to the archive directory.
//
// RETURNS:
//   - The path to the archived copy, or "" when archiving is disabled or
//     there is no previous output.
//   - An error if archival fails.
//
// NOTE: The output is copied, not moved, so it stays in place until the new
// one is renamed over it.
func (fm *FileManager) ArchiveOutputFile() (string, error) {
	if fm.ArchiveDir == "" || !FileExists(fm.OutputPath) {
		return "", nil
	}

	archivePath := fm.getArchivePath(fm.ArchiveDir, fm.OutputPath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(fm.OutputPath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// getArchivePath constructs a unique archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	base := filepath.Base(filePath)
	ext := filepath.Ext(base)
	fileName := GenerateOutputFileName("{original}_{timestamp}_{uuid}", ext,
		map[string]string{"original": strings.TrimSuffix(base, ext)})

	if fm.UseTimestampSubdirs {
		now := time.Now()
		subDir := filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
		return filepath.Join(subDir, fileName)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates a unique file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {original}  - Original file name (without extension)
//   - extension: Appended when the result does not already end with it.
//   - params: A map of placeholder values.
//
// EXAMPLE:
//   format: "{original}_{timestamp}_{uuid}"
//   params: {"original": "missions"}
//   output: "missions_20240115_143022_a1b2c3d4-e5f6-7890-abcd-ef1234567890.json"
func GenerateOutputFileName(format, extension string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}

	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if extension != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(extension)) {
		result += extension
	}

	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one run.
type RunSummary struct {
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	Source      string
	Outcome     string
	RowsRead    int
	RowsSkipped int
	Missions    int
	Errors      int
	Warnings    int
	OutputFile  string
	ArchivePath string
	DryRun      bool

	// Messages holds the error and warning lines of the run.
	Messages []string

	// FatalError is set when the run halted early.
	FatalError string
}

// WriteSummaryLog writes a run summary to the report directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary RunSummary) (string, error) {
	if fm.ReportDir == "" {
		return "", nil
	}
	return WriteSummaryLog(summary, fm.ReportDir)
}

// WriteSummaryLog writes a run summary into outputDir.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	runTag := summary.RunID
	if len(runTag) > 8 {
		runTag = runTag[:8]
	}
	summaryFileName := fmt.Sprintf("run_summary_%s_%s.txt", summary.StartTime.Format("20060102_150405"), runTag)
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	header := fmt.Sprintf("Mission Sheet Converter - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Source:         %s\n"+
		"  Outcome:        %s\n"+
		"  Dry Run:        %t\n\n"+
		"Statistics:\n"+
		"  Rows Read:          %d\n"+
		"  Rows Skipped:       %d\n"+
		"  Missions:           %d\n"+
		"  Validation Errors:  %d\n"+
		"  Warnings:           %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.Source,
		summary.Outcome,
		summary.DryRun,
		summary.RowsRead,
		summary.RowsSkipped,
		summary.Missions,
		summary.Errors,
		summary.Warnings)
	writer.WriteString(header)

	if summary.OutputFile != "" {
		writer.WriteString("Output:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		writer.WriteString(fmt.Sprintf("  File:         %s\n", summary.OutputFile))
		if summary.ArchivePath != "" {
			writer.WriteString(fmt.Sprintf("  Archived To:  %s\n", summary.ArchivePath))
		}
		writer.WriteString("\n")
	}

	if summary.FatalError != "" {
		writer.WriteString("Fatal Error:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		writer.WriteString(fmt.Sprintf("  %s\n\n", summary.FatalError))
	}

	if len(summary.Messages) > 0 {
		writer.WriteString("Messages:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for i, msg := range summary.Messages {
			writer.WriteString(fmt.Sprintf("  %d. %s\n", i+1, msg))
		}
		writer.WriteString("\n")
	}

	footer := "================================================================================\n" +
		"End of Summary\n"
	writer.WriteString(footer)

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CleanOldArchives removes this file manager's expired archives.
func (fm *FileManager) CleanOldArchives(maxAge time.Duration) (int, error) {
	return CleanOldArchives(fm.ArchiveDir, fm.OutputPath, maxAge)
}

// CleanOldArchives removes archived copies of outputPath older than maxAge.
//
// PARAMETERS:
//   - archiveDir: The archive directory to clean, including date subdirectories.
//   - outputPath: The file whose archives are cleaned. Only names of the form
//                 <name>_<YYYYMMDD_HHMMSS>_<uuid><ext> are considered.
//   - maxAge: The maximum age of files to keep. Zero keeps everything.
//
// RETURNS:
//   - The number of files removed.
//   - An error if cleaning fails.
func CleanOldArchives(archiveDir, outputPath string, maxAge time.Duration) (int, error) {
	if archiveDir == "" || maxAge <= 0 {
		return 0, nil
	}

	isArchive := archiveMatcher(outputPath)
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(archiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !isArchive(info.Name()) {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}

		return nil
	})

	if err != nil {
		return removed, fmt.Errorf("failed to clean archives: %w", err)
	}

	return removed, nil
}

// archiveMatcher reports whether a file name was produced by getArchivePath
// for outputPath.
func archiveMatcher(outputPath string) func(name string) bool {
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(strings.TrimSuffix(base, ext)) +
		`_\d{8}_\d{6}_([0-9a-fA-F-]{36})` + regexp.QuoteMeta(ext) + "$")

	return func(name string) bool {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			return false
		}
		_, err := uuid.Parse(m[1])
		return err == nil
	}
}
