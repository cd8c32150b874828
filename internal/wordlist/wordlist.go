// Package wordlist loads brute-force prefix lists and resolves the preset
// table. The top1k preset is compiled into the binary; other presets are read
// from a wordlist directory.
package wordlist

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/vulnverified/subsweep/internal/errs"
)

//go:embed lists/*.txt
var builtinFS embed.FS

// Builtin returns the compiled-in preset files.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtinFS, "lists")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dir returns a filesystem that serves files from dir, falling back to the
// compiled-in presets for names dir does not contain. An empty dir serves
// only the compiled-in presets.
func Dir(dir string) fs.FS {
	if dir == "" {
		return Builtin()
	}
	return layered{os.DirFS(dir), Builtin()}
}

// Load reads the named wordlist from fsys.
func Load(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("wordlist %s", name)
		}
		return nil, fmt.Errorf("open wordlist %s: %w", name, err)
	}
	defer f.Close()
	return parse(f, name)
}

// LoadFile reads a wordlist from a path on disk.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("wordlist %s", path)
		}
		return nil, fmt.Errorf("open wordlist %s: %w", path, err)
	}
	defer f.Close()
	return parse(f, path)
}

// parse returns trimmed lines in file order, skipping blanks and # comments.
// Duplicates are kept.
func parse(r io.Reader, name string) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", name, err)
	}
	return words, nil
}

// layered opens a name from the first filesystem that has it.
type layered []fs.FS

func (l layered) Open(name string) (fs.File, error) {
	for _, fsys := range l {
		f, err := fsys.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
