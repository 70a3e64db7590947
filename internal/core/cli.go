package core

import (
	"fmt"
	"os"
	"path/filepath"
)

type ArgError struct {
	Arg   string
	Cause string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// CommandKind identifies a CLI subcommand.
type CommandKind int

const (
	CmdCheck CommandKind = iota
	CmdUpload
)

// Command is a parsed CLI invocation: a subcommand plus the local
// files it operates on.
type Command struct {
	Kind  CommandKind
	Files []string
}

// ParseArgs parses CLI arguments into a Command. Every file argument
// must name an existing regular file; directories are rejected since
// genomic files are uploaded one at a time.
func ParseArgs(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, &ArgError{Arg: "<command>", Cause: "expected 'check' or 'upload'"}
	}

	var kind CommandKind
	switch args[0] {
	case "check":
		kind = CmdCheck
	case "upload":
		kind = CmdUpload
	default:
		return nil, &ArgError{Arg: args[0], Cause: "unknown command, expected 'check' or 'upload'"}
	}

	rest := args[1:]
	if len(rest) == 0 {
		return nil, &ArgError{Arg: "<files>", Cause: "no files provided"}
	}
	if kind == CmdUpload && len(rest) > 1 {
		return nil, &ArgError{Arg: rest[1], Cause: "upload accepts exactly one file"}
	}

	var files []string
	for _, raw := range rest {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ArgError{Arg: raw, Cause: "not found or not accessible"}
		}
		if info.IsDir() {
			return nil, &ArgError{Arg: raw, Cause: "is a directory, expected a file"}
		}
		files = append(files, p)
	}

	return &Command{Kind: kind, Files: files}, nil
}
