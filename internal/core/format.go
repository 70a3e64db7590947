package core

import (
	"path/filepath"
	"strings"
)

// FileType classifies a genomic file into one of the supported formats.
type FileType string

const (
	TypeVCF     FileType = "vcf"
	TypeBED     FileType = "bed"
	TypeBAM     FileType = "bam"
	TypeSAM     FileType = "sam"
	TypeFASTA   FileType = "fasta"
	TypeFASTQ   FileType = "fastq"
	TypeGFF     FileType = "gff"
	TypeGTF     FileType = "gtf"
	TypeUnknown FileType = "unknown"
)

// extensionTypes maps lowercase file extensions to their genomic format.
var extensionTypes = map[string]FileType{
	".vcf":   TypeVCF,
	".bed":   TypeBED,
	".bam":   TypeBAM,
	".sam":   TypeSAM,
	".fasta": TypeFASTA,
	".fa":    TypeFASTA,
	".fastq": TypeFASTQ,
	".fq":    TypeFASTQ,
	".gff":   TypeGFF,
	".gff3":  TypeGFF,
	".gtf":   TypeGTF,
}

// Format is the result of filename-based classification.
type Format struct {
	Type FileType
	// Compressed is true when the name carries a .gz/.bgz suffix.
	// BAM is inherently BGZF-compressed and reports Compressed=false;
	// its binary framing is handled by the validator directly.
	Compressed bool
}

// ValidTypes lists every recognized file type, in display order.
func ValidTypes() []FileType {
	return []FileType{TypeVCF, TypeBED, TypeBAM, TypeSAM, TypeFASTA, TypeFASTQ, TypeGFF, TypeGTF}
}

// IsValidType reports whether s names a supported file type.
func IsValidType(s string) bool {
	for _, t := range ValidTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// DetectFormat classifies a filename into a Format.
// Detection is purely lexical: a trailing .gz or .bgz marks the file
// compressed and classification continues on the inner extension.
// Unrecognized extensions yield TypeUnknown. Deterministic: the same
// name always produces the same Format.
func DetectFormat(filename string) Format {
	name := strings.ToLower(filepath.Base(filename))

	compressed := false
	if strings.HasSuffix(name, ".gz") {
		compressed = true
		name = strings.TrimSuffix(name, ".gz")
	} else if strings.HasSuffix(name, ".bgz") {
		compressed = true
		name = strings.TrimSuffix(name, ".bgz")
	}

	ext := filepath.Ext(name)
	t, ok := extensionTypes[ext]
	if !ok {
		return Format{Type: TypeUnknown, Compressed: compressed}
	}
	return Format{Type: t, Compressed: compressed}
}

// Extension returns the canonical storage extension for the format,
// e.g. ".vcf.gz" for a compressed VCF.
func (f Format) Extension() string {
	if f.Type == TypeUnknown {
		return ""
	}
	ext := "." + string(f.Type)
	if f.Compressed {
		ext += ".gz"
	}
	return ext
}

// gzipMagic is the two-byte gzip stream header.
var gzipMagic = []byte{0x1f, 0x8b}

// HasGzipMagic reports whether the byte prefix starts a gzip stream.
func HasGzipMagic(prefix []byte) bool {
	return len(prefix) >= 2 && prefix[0] == gzipMagic[0] && prefix[1] == gzipMagic[1]
}

// LooksBinary reports whether the prefix contains bytes that cannot
// appear in any of the supported text formats. NUL is the decisive
// signal; genomic text formats are ASCII line-oriented.
func LooksBinary(prefix []byte) bool {
	for _, b := range prefix {
		if b == 0x00 {
			return true
		}
	}
	return false
}
