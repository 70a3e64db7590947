package core

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantType   FileType
		compressed bool
	}{
		{"plain vcf", "sample.vcf", TypeVCF, false},
		{"gzipped vcf", "sample.vcf.gz", TypeVCF, true},
		{"bgzipped vcf", "sample.vcf.bgz", TypeVCF, true},
		{"bed", "intervals.bed", TypeBED, false},
		{"bam", "aligned.bam", TypeBAM, false},
		{"sam", "aligned.sam", TypeSAM, false},
		{"fasta long", "genome.fasta", TypeFASTA, false},
		{"fasta short", "genome.fa", TypeFASTA, false},
		{"gzipped fasta short", "genome.fa.gz", TypeFASTA, true},
		{"fastq long", "reads.fastq", TypeFASTQ, false},
		{"fastq short", "reads.fq", TypeFASTQ, false},
		{"gff", "annot.gff", TypeGFF, false},
		{"gff3", "annot.gff3", TypeGFF, false},
		{"gtf", "annot.gtf", TypeGTF, false},
		{"uppercase extension", "SAMPLE.VCF", TypeVCF, false},
		{"mixed case gz", "Sample.Vcf.GZ", TypeVCF, true},
		{"path is stripped", "/data/uploads/sample.bed", TypeBED, false},
		{"unknown extension", "notes.txt", TypeUnknown, false},
		{"bare gz", "archive.gz", TypeUnknown, true},
		{"no extension", "README", TypeUnknown, false},
		{"empty name", "", TypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFormat(tt.filename)
			if got.Type != tt.wantType {
				t.Errorf("DetectFormat(%q).Type = %q, want %q", tt.filename, got.Type, tt.wantType)
			}
			if got.Compressed != tt.compressed {
				t.Errorf("DetectFormat(%q).Compressed = %v, want %v", tt.filename, got.Compressed, tt.compressed)
			}
		})
	}
}

func TestDetectFormatDeterministic(t *testing.T) {
	names := []string{"a.vcf", "a.vcf.gz", "weird.name.bed", "x.bam", "none"}
	for _, name := range names {
		first := DetectFormat(name)
		for i := 0; i < 10; i++ {
			if got := DetectFormat(name); got != first {
				t.Fatalf("DetectFormat(%q) not deterministic: %v then %v", name, first, got)
			}
		}
	}
}

func TestFormatExtension(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{Format{Type: TypeVCF, Compressed: false}, ".vcf"},
		{Format{Type: TypeVCF, Compressed: true}, ".vcf.gz"},
		{Format{Type: TypeFASTA, Compressed: false}, ".fasta"},
		{Format{Type: TypeUnknown, Compressed: true}, ""},
	}
	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("Extension(%v) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestHasGzipMagic(t *testing.T) {
	if !HasGzipMagic([]byte{0x1f, 0x8b, 0x08}) {
		t.Error("expected gzip magic to be detected")
	}
	if HasGzipMagic([]byte{0x1f}) {
		t.Error("single byte must not match")
	}
	if HasGzipMagic([]byte("##fileformat")) {
		t.Error("text must not match")
	}
}

func TestLooksBinary(t *testing.T) {
	if LooksBinary([]byte("#CHROM\tPOS\n")) {
		t.Error("plain text flagged as binary")
	}
	if !LooksBinary([]byte{'A', 0x00, 'B'}) {
		t.Error("NUL byte not flagged as binary")
	}
}

func TestIsValidType(t *testing.T) {
	for _, typ := range ValidTypes() {
		if !IsValidType(string(typ)) {
			t.Errorf("IsValidType(%q) = false, want true", typ)
		}
	}
	for _, s := range []string{"unknown", "", "zip", "VCF"} {
		if IsValidType(s) {
			t.Errorf("IsValidType(%q) = true, want false", s)
		}
	}
}
