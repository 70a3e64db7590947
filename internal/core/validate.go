package core

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxScanBytes bounds how much of a file the validator inspects.
// Structural faults in genomic formats show up in the header region,
// so a bounded prefix keeps validation cheap for gigabyte uploads.
const maxScanBytes = 8 << 20

// maxReportedErrors caps how many structural errors a single report
// itemizes before the scan stops.
const maxReportedErrors = 5

// Report is the outcome of validating one upload attempt.
// It is ephemeral: embedded in the upload response, never stored as
// its own entity.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	FileType FileType `json:"file_type"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newReport(t FileType) *Report {
	return &Report{FileType: t, Errors: []string{}, Warnings: []string{}}
}

func (r *Report) addError(format string, args ...any) {
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	}
}

func (r *Report) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) finalize() *Report {
	r.IsValid = len(r.Errors) == 0
	return r
}

// NewOversizeReport builds a failed report for an upload rejected on
// size alone, before any content inspection.
func NewOversizeReport(f Format, size, max int64) *Report {
	rep := newReport(f.Type)
	rep.addError("file size %d exceeds maximum allowed size %d", size, max)
	return rep.finalize()
}

// NewUnsupportedReport builds a failed report for a filename whose
// extension maps to no supported format.
func NewUnsupportedReport(filename string) *Report {
	rep := newReport(TypeUnknown)
	rep.addError("unsupported file type: %s", filename)
	return rep.finalize()
}

// Validate applies per-format structural checks to the byte stream and
// produces a Report. It never mutates its input and holds no state, so
// a failed upload can be retried by re-running it on the same bytes.
//
// At most maxScanBytes are read. Abrupt EOF inside a structural unit
// (a truncated gzip stream, an incomplete FASTQ record block) is an
// error; an extension/magic-byte mismatch alone is a warning.
func Validate(r io.Reader, f Format) *Report {
	rep := newReport(f.Type)

	if f.Type == TypeUnknown {
		rep.addError("unrecognized file format")
		return rep.finalize()
	}

	if f.Type == TypeBAM {
		validateBAM(r, rep)
		return rep.finalize()
	}

	content, clipped, readErr := readScanWindow(r, f, rep)
	if len(rep.Errors) > 0 {
		return rep.finalize()
	}
	if readErr != nil {
		rep.addError("failed to read file content: %v", readErr)
		return rep.finalize()
	}
	if len(content) == 0 {
		rep.addError("file is empty")
		return rep.finalize()
	}
	if LooksBinary(content) {
		rep.addError("binary content in a %s file", f.Type)
		return rep.finalize()
	}

	lines := splitLines(content, clipped)

	switch f.Type {
	case TypeVCF:
		validateVCF(lines, rep)
	case TypeBED:
		validateBED(lines, rep)
	case TypeFASTA:
		validateFASTA(lines, rep)
	case TypeFASTQ:
		validateFASTQ(lines, clipped, rep)
	case TypeSAM:
		validateSAM(lines, rep)
	case TypeGFF, TypeGTF:
		validateGFF(lines, f.Type, rep)
	}

	return rep.finalize()
}

// readScanWindow reads up to maxScanBytes of the (possibly gzipped)
// stream. A .gz name without gzip magic is a warning and the raw bytes
// are scanned instead; gzip magic under a plain name likewise warns and
// the decompressed bytes are scanned. A gzip stream that fails to
// decompress is an error.
func readScanWindow(r io.Reader, f Format, rep *Report) (content []byte, clipped bool, err error) {
	head := make([]byte, 2)
	n, herr := io.ReadFull(r, head)
	if herr != nil && !errors.Is(herr, io.EOF) && !errors.Is(herr, io.ErrUnexpectedEOF) {
		return nil, false, herr
	}
	head = head[:n]
	full := io.MultiReader(strings.NewReader(string(head)), r)

	src := full
	switch {
	case f.Compressed && HasGzipMagic(head):
		gz, gerr := gzip.NewReader(full)
		if gerr != nil {
			rep.addError("corrupt gzip stream: %v", gerr)
			return nil, false, nil
		}
		src = gz
	case f.Compressed:
		rep.addWarning("filename indicates gzip compression but content lacks gzip magic bytes; validating as plain text")
	case HasGzipMagic(head):
		rep.addWarning("content is gzip-compressed but filename lacks a .gz suffix; validating decompressed content")
		gz, gerr := gzip.NewReader(full)
		if gerr != nil {
			rep.addError("corrupt gzip stream: %v", gerr)
			return nil, false, nil
		}
		src = gz
	}

	content, rerr := io.ReadAll(io.LimitReader(src, maxScanBytes+1))
	if rerr != nil {
		if errors.Is(rerr, io.ErrUnexpectedEOF) || errors.Is(rerr, gzip.ErrChecksum) || errors.Is(rerr, gzip.ErrHeader) {
			rep.addError("truncated or corrupt gzip stream: %v", rerr)
			return nil, false, nil
		}
		return nil, false, rerr
	}
	if int64(len(content)) > maxScanBytes {
		return content[:maxScanBytes], true, nil
	}
	return content, false, nil
}

// splitLines breaks the scan window into lines. When the window was
// clipped at the byte budget the final partial line is dropped so it
// cannot trip structural checks.
func splitLines(content []byte, clipped bool) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if clipped && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	// A trailing newline produces one empty trailing element.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func validateVCF(lines []string, rep *Report) {
	headerSeen := false
	for i, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Split(line, "\t")
			if !strings.HasPrefix(line, "#CHROM") {
				rep.addError("line %d: unexpected header line %q, expected #CHROM row", i+1, firstField(line))
				continue
			}
			if len(fields) < 8 {
				rep.addError("line %d: #CHROM header has %d columns, expected at least 8", i+1, len(fields))
			}
			headerSeen = true
			continue
		}
		if !headerSeen {
			rep.addError("line %d: data record before the mandatory #CHROM header row", i+1)
			return
		}
		if fields := strings.Split(line, "\t"); len(fields) < 8 {
			rep.addError("line %d: %d columns, expected at least 8", i+1, len(fields))
		}
	}
	if !headerSeen {
		rep.addError("missing mandatory #CHROM header row")
	}
}

func validateBED(lines []string, rep *Report) {
	records := 0
	for i, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		records++
		fields := strings.Fields(line)
		if len(fields) < 3 {
			rep.addError("line %d: %d fields, BED requires at least 3 (chrom, start, end)", i+1, len(fields))
			continue
		}
		start, serr := strconv.ParseInt(fields[1], 10, 64)
		end, eerr := strconv.ParseInt(fields[2], 10, 64)
		if serr != nil || start < 0 {
			rep.addError("line %d: start %q is not a non-negative integer", i+1, fields[1])
			continue
		}
		if eerr != nil || end < 0 {
			rep.addError("line %d: end %q is not a non-negative integer", i+1, fields[2])
			continue
		}
		if start > end {
			rep.addError("line %d: malformed interval, start %d is greater than end %d", i+1, start, end)
		}
	}
	if records == 0 {
		rep.addError("no interval records found")
	}
}

func validateFASTA(lines []string, rep *Report) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			rep.addError("first sequence line does not begin with '>'")
		}
		return
	}
	rep.addError("no sequence records found")
}

func validateFASTQ(lines []string, clipped bool, rep *Report) {
	if !clipped && len(lines)%4 != 0 {
		rep.addError("truncated FASTQ: %d lines is not a multiple of 4", len(lines))
	}
	blocks := len(lines) / 4
	for b := 0; b < blocks; b++ {
		header := lines[b*4]
		sep := lines[b*4+2]
		if !strings.HasPrefix(header, "@") {
			rep.addError("record %d: header line does not begin with '@'", b+1)
		}
		if !strings.HasPrefix(sep, "+") {
			rep.addError("record %d: separator line does not begin with '+'", b+1)
		}
		if len(rep.Errors) >= maxReportedErrors {
			return
		}
	}
}

// validateSAM checks the first non-empty line only: a SAM file opens
// with either an @-prefixed header line or a full alignment record.
func validateSAM(lines []string, rep *Report) {
	for i, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			return
		}
		if fields := strings.Split(line, "\t"); len(fields) < 11 {
			rep.addError("line %d: alignment has %d columns, SAM requires at least 11", i+1, len(fields))
		}
		return
	}
	rep.addError("no header or alignment lines found")
}

func validateGFF(lines []string, t FileType, rep *Report) {
	records := 0
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records++
		if fields := strings.Split(line, "\t"); len(fields) != 9 {
			rep.addError("line %d: %d columns, %s requires exactly 9", i+1, len(fields), strings.ToUpper(string(t)))
		}
		if len(rep.Errors) >= maxReportedErrors {
			return
		}
	}
	if records == 0 {
		rep.addError("no feature records found")
	}
}

// bamMagic opens the decompressed payload of every BAM file.
var bamMagic = []byte{'B', 'A', 'M', 0x01}

// validateBAM checks BGZF framing and the inner BAM magic number only;
// structural parsing of alignments is out of scope.
func validateBAM(r io.Reader, rep *Report) {
	br := io.LimitReader(r, 1<<16)
	head := make([]byte, 2)
	if _, err := io.ReadFull(br, head); err != nil {
		rep.addError("file too short to be a BAM file")
		return
	}
	if !HasGzipMagic(head) {
		rep.addError("missing BGZF (gzip) magic bytes; not a BAM file")
		return
	}
	gz, err := gzip.NewReader(io.MultiReader(strings.NewReader(string(head)), br))
	if err != nil {
		rep.addError("corrupt BGZF block: %v", err)
		return
	}
	defer gz.Close()

	inner := make([]byte, 4)
	if _, err := io.ReadFull(gz, inner); err != nil {
		rep.addError("truncated BGZF block: %v", err)
		return
	}
	for i := range bamMagic {
		if inner[i] != bamMagic[i] {
			rep.addError("decompressed content lacks the BAM magic number")
			return
		}
	}
}

func firstField(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i]
	}
	return line
}
