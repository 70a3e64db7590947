package core

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

const validVCF = "##fileformat=VCFv4.2\n" +
	"##source=test\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"chr1\t100\t.\tA\tT\t50\tPASS\t.\n" +
	"chr1\t200\t.\tG\tC\t99\tPASS\tDP=30\n"

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func validate(t *testing.T, data []byte, filename string) *Report {
	t.Helper()
	return Validate(bytes.NewReader(data), DetectFormat(filename))
}

func TestValidateVCF(t *testing.T) {
	t.Run("valid vcf", func(t *testing.T) {
		rep := validate(t, []byte(validVCF), "sample.vcf")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
		if rep.FileType != TypeVCF {
			t.Errorf("expected file type vcf, got %s", rep.FileType)
		}
		if len(rep.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", rep.Warnings)
		}
	})

	t.Run("binary garbage rejected", func(t *testing.T) {
		garbage := []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x00, 0x01, 0xff}
		rep := validate(t, garbage, "bad.vcf")
		if rep.IsValid {
			t.Fatal("expected binary content to be rejected")
		}
		if len(rep.Errors) == 0 {
			t.Error("expected at least one error")
		}
	})

	t.Run("missing header row", func(t *testing.T) {
		rep := validate(t, []byte("chr1\t100\t.\tA\tT\t50\tPASS\t.\n"), "noheader.vcf")
		if rep.IsValid {
			t.Fatal("expected data before #CHROM header to be rejected")
		}
	})

	t.Run("header with too few columns", func(t *testing.T) {
		rep := validate(t, []byte("#CHROM\tPOS\tID\n"), "short.vcf")
		if rep.IsValid {
			t.Fatal("expected short header to be rejected")
		}
	})

	t.Run("data line with too few columns", func(t *testing.T) {
		data := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\nchr1\t100\n"
		rep := validate(t, []byte(data), "short_data.vcf")
		if rep.IsValid {
			t.Fatal("expected short data line to be rejected")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		rep := validate(t, nil, "empty.vcf")
		if rep.IsValid {
			t.Fatal("expected empty file to be rejected")
		}
	})

	t.Run("validator does not consume shared state", func(t *testing.T) {
		// Same bytes validated twice must produce identical reports.
		first := validate(t, []byte(validVCF), "sample.vcf")
		second := validate(t, []byte(validVCF), "sample.vcf")
		if first.IsValid != second.IsValid || len(first.Errors) != len(second.Errors) {
			t.Error("validation is not repeatable")
		}
	})
}

func TestValidateCompressed(t *testing.T) {
	t.Run("valid gzipped vcf", func(t *testing.T) {
		rep := validate(t, gzipBytes(t, validVCF), "sample.vcf.gz")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
		if rep.FileType != TypeVCF {
			t.Errorf("expected inner type vcf, got %s", rep.FileType)
		}
	})

	t.Run("gz name without gzip magic is a warning", func(t *testing.T) {
		rep := validate(t, []byte(validVCF), "sample.vcf.gz")
		if !rep.IsValid {
			t.Fatalf("magic mismatch alone must not reject, got errors: %v", rep.Errors)
		}
		if len(rep.Warnings) == 0 {
			t.Error("expected a mismatch warning")
		}
	})

	t.Run("gzip magic without gz name is a warning", func(t *testing.T) {
		rep := validate(t, gzipBytes(t, validVCF), "sample.vcf")
		if !rep.IsValid {
			t.Fatalf("expected decompressed content to validate, got errors: %v", rep.Errors)
		}
		if len(rep.Warnings) == 0 {
			t.Error("expected a mismatch warning")
		}
	})

	t.Run("truncated gzip stream rejected", func(t *testing.T) {
		full := gzipBytes(t, strings.Repeat(validVCF, 50))
		rep := validate(t, full[:len(full)/2], "sample.vcf.gz")
		if rep.IsValid {
			t.Fatal("expected truncated gzip stream to be rejected")
		}
	})
}

func TestValidateBED(t *testing.T) {
	t.Run("valid bed", func(t *testing.T) {
		data := "track name=test\nchr1\t100\t200\nchr2\t0\t50\tfeature\t960\t+\n"
		rep := validate(t, []byte(data), "data.bed")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("start greater than end", func(t *testing.T) {
		rep := validate(t, []byte("chr1\t200\t100\n"), "data.bed")
		if rep.IsValid {
			t.Fatal("expected malformed interval to be rejected")
		}
		found := false
		for _, e := range rep.Errors {
			if strings.Contains(e, "malformed interval") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected an error citing the malformed interval, got %v", rep.Errors)
		}
	})

	t.Run("non-numeric coordinates", func(t *testing.T) {
		rep := validate(t, []byte("chr1\tabc\t100\n"), "data.bed")
		if rep.IsValid {
			t.Fatal("expected non-numeric start to be rejected")
		}
	})

	t.Run("negative coordinates", func(t *testing.T) {
		rep := validate(t, []byte("chr1\t-5\t100\n"), "data.bed")
		if rep.IsValid {
			t.Fatal("expected negative start to be rejected")
		}
	})

	t.Run("too few fields", func(t *testing.T) {
		rep := validate(t, []byte("chr1\t100\n"), "data.bed")
		if rep.IsValid {
			t.Fatal("expected two-field line to be rejected")
		}
	})

	t.Run("space delimited accepted", func(t *testing.T) {
		rep := validate(t, []byte("chr1 100 200\n"), "data.bed")
		if !rep.IsValid {
			t.Fatalf("expected space-delimited BED to be accepted, got %v", rep.Errors)
		}
	})
}

func TestValidateFASTA(t *testing.T) {
	t.Run("valid fasta", func(t *testing.T) {
		rep := validate(t, []byte(">seq1 description\nACGTACGT\nACGT\n>seq2\nTTTT\n"), "genome.fa")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("missing leading marker", func(t *testing.T) {
		rep := validate(t, []byte("ACGTACGT\n"), "genome.fasta")
		if rep.IsValid {
			t.Fatal("expected sequence without '>' header to be rejected")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		rep := validate(t, nil, "genome.fa")
		if rep.IsValid {
			t.Fatal("expected empty file to be rejected")
		}
	})
}

func TestValidateFASTQ(t *testing.T) {
	valid := "@read1\nACGT\n+\nIIII\n@read2\nTTTT\n+read2\nJJJJ\n"

	t.Run("valid fastq", func(t *testing.T) {
		rep := validate(t, []byte(valid), "reads.fastq")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("incomplete record block", func(t *testing.T) {
		rep := validate(t, []byte("@read1\nACGT\n+\nIIII\n@read2\nTTTT\n"), "reads.fq")
		if rep.IsValid {
			t.Fatal("expected truncated record block to be rejected")
		}
	})

	t.Run("bad header prefix", func(t *testing.T) {
		rep := validate(t, []byte("read1\nACGT\n+\nIIII\n"), "reads.fq")
		if rep.IsValid {
			t.Fatal("expected header without '@' to be rejected")
		}
	})

	t.Run("bad separator prefix", func(t *testing.T) {
		rep := validate(t, []byte("@read1\nACGT\nIIII\nIIII\n"), "reads.fq")
		if rep.IsValid {
			t.Fatal("expected separator without '+' to be rejected")
		}
	})

	t.Run("gzipped fastq", func(t *testing.T) {
		rep := validate(t, gzipBytes(t, valid), "reads.fastq.gz")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})
}

func TestValidateSAM(t *testing.T) {
	t.Run("header first", func(t *testing.T) {
		rep := validate(t, []byte("@HD\tVN:1.6\tSO:coordinate\n"), "aligned.sam")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("alignment first", func(t *testing.T) {
		line := "r1\t0\tchr1\t100\t60\t4M\t*\t0\t0\tACGT\tIIII\n"
		rep := validate(t, []byte(line), "aligned.sam")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("short alignment rejected", func(t *testing.T) {
		rep := validate(t, []byte("r1\t0\tchr1\n"), "aligned.sam")
		if rep.IsValid {
			t.Fatal("expected short alignment line to be rejected")
		}
	})
}

func TestValidateBAM(t *testing.T) {
	t.Run("valid bam magic", func(t *testing.T) {
		payload := "BAM\x01" + strings.Repeat("\x00", 16)
		rep := validate(t, gzipBytes(t, payload), "aligned.bam")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("text content rejected", func(t *testing.T) {
		rep := validate(t, []byte("@HD\tVN:1.6\n"), "aligned.bam")
		if rep.IsValid {
			t.Fatal("expected text content under .bam to be rejected")
		}
	})

	t.Run("gzip without bam magic rejected", func(t *testing.T) {
		rep := validate(t, gzipBytes(t, "not a bam payload"), "aligned.bam")
		if rep.IsValid {
			t.Fatal("expected missing BAM magic to be rejected")
		}
	})

	t.Run("too short", func(t *testing.T) {
		rep := validate(t, []byte{0x1f}, "aligned.bam")
		if rep.IsValid {
			t.Fatal("expected one-byte file to be rejected")
		}
	})
}

func TestValidateGFF(t *testing.T) {
	valid := "##gff-version 3\nchr1\ttest\tgene\t100\t200\t.\t+\t.\tID=gene1\n"

	t.Run("valid gff", func(t *testing.T) {
		rep := validate(t, []byte(valid), "annot.gff")
		if !rep.IsValid {
			t.Fatalf("expected valid, got errors: %v", rep.Errors)
		}
	})

	t.Run("wrong column count", func(t *testing.T) {
		rep := validate(t, []byte("chr1\ttest\tgene\t100\t200\n"), "annot.gtf")
		if rep.IsValid {
			t.Fatal("expected five-column feature to be rejected")
		}
	})
}

func TestValidateUnknown(t *testing.T) {
	rep := validate(t, []byte("anything"), "notes.txt")
	if rep.IsValid {
		t.Fatal("unknown format must never validate")
	}
	if rep.FileType != TypeUnknown {
		t.Errorf("expected file type unknown, got %s", rep.FileType)
	}
}

func TestOversizeReport(t *testing.T) {
	rep := NewOversizeReport(Format{Type: TypeVCF}, 2<<30, 1<<30)
	if rep.IsValid {
		t.Fatal("oversize report must be invalid")
	}
	if len(rep.Errors) == 0 || !strings.Contains(rep.Errors[0], "exceeds maximum allowed size") {
		t.Errorf("expected a size-limit error, got %v", rep.Errors)
	}
}
