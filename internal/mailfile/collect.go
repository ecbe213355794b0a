package mailfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-mbox"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// Skipped is an input that could not be turned into an email
type Skipped struct {
	Source string
	Err    error
}

// ReadMbox returns the valid messages of an mbox archive. Messages that fail
// to parse or validate are reported as skipped.
func ReadMbox(path string) ([]*core.Email, []Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mbox: %w", err)
	}
	defer f.Close()

	var (
		emails  []*core.Email
		skipped []Skipped
	)
	r := mbox.NewReader(f)
	for i := 1; ; i++ {
		msg, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		source := fmt.Sprintf("%s#%d", path, i)
		if err != nil {
			return emails, skipped, fmt.Errorf("failed to read %s: %w", source, err)
		}

		raw, err := io.ReadAll(msg)
		if err != nil {
			skipped = append(skipped, Skipped{Source: source, Err: err})
			continue
		}
		email, err := Parse(raw)
		if err == nil {
			err = Validate(email)
		}
		if err != nil {
			skipped = append(skipped, Skipped{Source: source, Err: err})
			continue
		}
		email.Source = source
		emails = append(emails, email)
	}
	return emails, skipped, nil
}

// IsMbox reports whether the file at path starts with an mbox "From " separator
func IsMbox(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head, err := bufio.NewReader(f).Peek(5)
	return err == nil && bytes.Equal(head, []byte("From "))
}

// Collect loads every message named by paths. Directories are walked
// recursively, skipping hidden entries; mbox archives are expanded. Inputs that
// are not valid emails are returned as skipped rather than failing the whole run.
func Collect(paths []string) ([]*core.Email, []Skipped) {
	var (
		emails  []*core.Email
		skipped []Skipped
	)
	for _, path := range paths {
		files, err := listFiles(path)
		if err != nil {
			skipped = append(skipped, Skipped{Source: path, Err: err})
			continue
		}
		for _, file := range files {
			if IsMbox(file) {
				found, bad, err := ReadMbox(file)
				emails = append(emails, found...)
				skipped = append(skipped, bad...)
				if err != nil {
					skipped = append(skipped, Skipped{Source: file, Err: err})
				}
				continue
			}
			email, err := Load(file)
			if err != nil {
				skipped = append(skipped, Skipped{Source: file, Err: err})
				continue
			}
			emails = append(emails, email)
		}
	}
	return emails, skipped
}

func listFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	return files, nil
}
