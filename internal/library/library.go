package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bookscribe/internal/services"
)

// AudioExtension is the only audio format the library recognizes.
const AudioExtension = ".mp3"

// CaptionExtension is produced by the external transcription tool.
const CaptionExtension = ".vtt"

// Book identifies one collection of audio files.
type Book struct {
	Name         string
	DisplayTitle string
}

// Library provides a filesystem view over a directory of books.
type Library struct {
	root  string
	title cases.Caser
}

// New constructs a library rooted at dir.
func New(dir string) (*Library, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("library: root directory required")
	}
	return &Library{root: dir, title: cases.Title(language.Und)}, nil
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// ListBooks returns the sorted book directories under the library root.
func (l *Library) ListBooks() ([]Book, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "library", "list books", fmt.Sprintf("library root %s does not exist", l.root), err)
		}
		return nil, fmt.Errorf("list books: %w", err)
	}
	books := make([]Book, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		books = append(books, Book{Name: name, DisplayTitle: l.displayTitle(name)})
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Name < books[j].Name })
	return books, nil
}

// ListAudioFiles returns the sorted audio files for a book.
func (l *Library) ListAudioFiles(book string) ([]string, error) {
	dir, err := l.bookDir(book)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "library", "list files", fmt.Sprintf("book %q not found", book), err)
		}
		return nil, fmt.Errorf("list audio files: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), AudioExtension) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// ResolvePath returns the absolute path of a file inside a book, rejecting
// names that would escape the library root.
func (l *Library) ResolvePath(book, file string) (string, error) {
	dir, err := l.bookDir(book)
	if err != nil {
		return "", err
	}
	if err := validateComponent(file); err != nil {
		return "", err
	}
	return filepath.Join(dir, file), nil
}

// CaptionPath returns the caption artifact path for an audio file. The
// external tool writes the caption next to the source with a .vtt suffix.
func (l *Library) CaptionPath(book, file string) (string, error) {
	audio, err := l.ResolvePath(book, file)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(audio)
	return strings.TrimSuffix(audio, ext) + CaptionExtension, nil
}

// CaptionExists reports whether the caption artifact for a file is present.
func (l *Library) CaptionExists(book, file string) bool {
	path, err := l.CaptionPath(book, file)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AudioExists reports whether the audio file itself is present.
func (l *Library) AudioExists(book, file string) bool {
	path, err := l.ResolvePath(book, file)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// BookDir returns the directory holding a book's files.
func (l *Library) BookDir(book string) (string, error) {
	return l.bookDir(book)
}

func (l *Library) bookDir(book string) (string, error) {
	if err := validateComponent(book); err != nil {
		return "", err
	}
	return filepath.Join(l.root, book), nil
}

func (l *Library) displayTitle(name string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return name
	}
	return l.title.String(cleaned)
}

func validateComponent(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return services.Wrap(services.ErrValidation, "library", "resolve path", "empty path component", nil)
	}
	if filepath.IsAbs(trimmed) || strings.Contains(trimmed, "..") || strings.ContainsAny(trimmed, `/\`) {
		return services.Wrap(services.ErrValidation, "library", "resolve path", fmt.Sprintf("unsafe path component %q", name), nil)
	}
	return nil
}
