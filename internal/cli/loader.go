package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/tracegate/internal/trace"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 64 << 20

// LoadResult contains the trace objects read from the given paths.
type LoadResult struct {
	Traces    []trace.Object
	FileCount int // Number of trace files read
}

// LoadError represents an error that occurred while loading traces.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Line    int // 1-based JSONL line, 0 when not applicable
}

func (e *LoadError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, e.Code, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadTraces reads trace objects from files and directories.
//
// A .jsonl file holds one object per line, blank lines skipped. Any other
// file holds a JSON array of objects or a single object. Directories are
// walked in lexical order and only .json and .jsonl files are read. Every
// problem is collected; traces from readable records are still returned.
func LoadTraces(paths []string) (*LoadResult, []error) {
	result := &LoadResult{}
	var errs []error

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: p})
			continue
		}
		if !info.IsDir() {
			errs = append(errs, result.readFile(p)...)
			continue
		}

		files, err := FindTraceFiles(p)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Path: p})
			continue
		}
		for _, f := range files {
			errs = append(errs, result.readFile(f)...)
		}
	}

	if result.FileCount == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no trace files found in %s", strings.Join(paths, ", "))})
	}
	return result, errs
}

// FindTraceFiles walks the directory and returns all .json and .jsonl paths.
func FindTraceFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".jsonl":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (r *LoadResult) readFile(path string) []error {
	data, err := os.ReadFile(path)
	if err != nil {
		return []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path}}
	}
	r.FileCount++

	if strings.ToLower(filepath.Ext(path)) == ".jsonl" {
		return r.readLines(path, data)
	}
	return r.readDocument(path, data)
}

func (r *LoadResult) readLines(path string, data []byte) []error {
	var errs []error
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(text, &obj); err != nil || obj == nil {
			msg := "line is not a JSON object"
			if err != nil {
				msg = err.Error()
			}
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: msg, Path: path, Line: line})
			continue
		}
		r.Traces = append(r.Traces, trace.Object(obj))
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path, Line: line + 1})
	}
	return errs
}

func (r *LoadResult) readDocument(path string, data []byte) []error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path}}
	}

	switch v := doc.(type) {
	case map[string]any:
		r.Traces = append(r.Traces, trace.Object(v))
		return nil
	case []any:
		var errs []error
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("element %d is not a JSON object", i), Path: path})
				continue
			}
			r.Traces = append(r.Traces, trace.Object(obj))
		}
		return errs
	}
	return []error{&LoadError{Code: ErrCodeLoadFailed, Message: "expected a JSON object or array of objects", Path: path}}
}

// readJSONObject reads a file holding a single JSON object.
func readJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return obj, nil
}

// failLoad reports load errors and returns the command error.
func failLoad(f *OutputFormatter, errs []error) error {
	message := fmt.Sprintf("failed to load traces (%d error(s))", len(errs))
	if err := f.Error(loadErrorCode(errs), message, errorStrings(errs)); err != nil {
		return err
	}
	return WrapExitError(ExitCommandError, message, errors.Join(errs...))
}

// loadErrorCode is the code of the first LoadError.
func loadErrorCode(errs []error) string {
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return loadErr.Code
		}
	}
	return ErrCodeGeneric
}

// errorStrings flattens load errors for JSON details.
func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
