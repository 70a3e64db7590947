package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"helix/internal/core"
)

func main() {
	cmd, err := core.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: helix check <files...> | helix upload <file>")
		os.Exit(1)
	}

	switch cmd.Kind {
	case core.CmdCheck:
		if !checkFiles(cmd.Files) {
			os.Exit(1)
		}
	case core.CmdUpload:
		if err := uploadFile(cmd.Files[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// checkFiles runs the same detector and validator the server uses,
// locally, so a failing upload can be diagnosed without sending bytes.
func checkFiles(paths []string) bool {
	ok := true
	for _, path := range paths {
		format := core.DetectFormat(path)

		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			ok = false
			continue
		}
		report := core.Validate(f, format)
		f.Close()

		if report.IsValid {
			fmt.Printf("✓ %s (%s)\n", path, report.FileType)
		} else {
			ok = false
			fmt.Printf("✗ %s (%s)\n", path, report.FileType)
			for _, e := range report.Errors {
				fmt.Printf("    error: %s\n", e)
			}
		}
		for _, w := range report.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
	return ok
}

func uploadFile(path string) error {
	server := os.Getenv("HELIX_SERVER")
	if server == "" {
		server = "http://localhost:8002"
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	resp, err := http.Post(server+"/upload", mw.FormDataContentType(), pr)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server rejected upload (%s): %s", resp.Status, body)
	}

	fmt.Printf("✓ Uploaded %s\n%s\n", path, body)
	return nil
}
