package tool

import (
	"context"
	"fmt"
	"os"
	"sort"
)

const readFileDoc = `Read contents of a text file.

Args:
    path: Path to the file to read (absolute or relative)
`

type readFileArgs struct {
	Path string `json:"path"`
}

type readFileTool struct{ desc Descriptor }

func newReadFileTool() (Tool, error) {
	d, err := BuildDescriptor("read_file", readFileDoc, readFileArgs{})
	if err != nil {
		return nil, err
	}
	return &readFileTool{desc: d}, nil
}

func (t *readFileTool) Describe() Descriptor { return t.desc }

func (t *readFileTool) Invoke(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var a readFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File '%s' not found", a.Path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	return string(data), nil
}

const writeFileDoc = `Write content to a file, creating or overwriting it.

Args:
    path: Path to the file to write (will be created if it doesn't exist)
    content: Text content to write to the file
`

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type writeFileTool struct{ desc Descriptor }

func newWriteFileTool() (Tool, error) {
	d, err := BuildDescriptor("write_file", writeFileDoc, writeFileArgs{})
	if err != nil {
		return nil, err
	}
	return &writeFileTool{desc: d}, nil
}

func (t *writeFileTool) Describe() Descriptor { return t.desc }

func (t *writeFileTool) Invoke(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var a writeFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := os.WriteFile(a.Path, []byte(a.Content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(a.Content), a.Path), nil
}

const listFilesDoc = `List files in a directory.

Args:
    path: Directory path (default: current directory)
`

type listFilesArgs struct {
	Path string `json:"path" default:"."`
}

type listFilesTool struct{ desc Descriptor }

func newListFilesTool() (Tool, error) {
	d, err := BuildDescriptor("list_files", listFilesDoc, listFilesArgs{})
	if err != nil {
		return nil, err
	}
	return &listFilesTool{desc: d}, nil
}

func (t *listFilesTool) Describe() Descriptor { return t.desc }

func (t *listFilesTool) Invoke(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var a listFilesArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return fmt.Sprintf("Error: Directory '%s' not found", a.Path), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a directory", a.Path), nil
	}
	entries, err := os.ReadDir(a.Path)
	if err != nil {
		return fmt.Sprintf("Error listing files: %v", err), nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := fmt.Sprintf("Contents of %s:", a.Path)
	for _, e := range entries {
		marker := "f"
		if e.IsDir() {
			marker = "d"
		}
		out += fmt.Sprintf("\n%s %s", marker, e.Name())
	}
	return out, nil
}

const deleteFileDoc = `Delete a file (not directories).

Args:
    path: Path to the file to delete
`

type deleteFileArgs struct {
	Path string `json:"path"`
}

type deleteFileTool struct{ desc Descriptor }

func newDeleteFileTool() (Tool, error) {
	d, err := BuildDescriptor("delete_file", deleteFileDoc, deleteFileArgs{})
	if err != nil {
		return nil, err
	}
	return &deleteFileTool{desc: d}, nil
}

func (t *deleteFileTool) Describe() Descriptor { return t.desc }

func (t *deleteFileTool) Invoke(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var a deleteFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return fmt.Sprintf("Error: File '%s' not found", a.Path), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: '%s' is a directory", a.Path), nil
	}
	if err := os.Remove(a.Path); err != nil {
		return fmt.Sprintf("Error deleting file: %v", err), nil
	}
	return fmt.Sprintf("Deleted %s", a.Path), nil
}
