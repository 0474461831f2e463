package utils

import (
	"bufio"
	"crypto/sha1"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// MakeDir just make a folder
func MakeDir(folder string) {
	os.MkdirAll(NormalizePath(folder), 0750)
}

// NormalizePath the path
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "~") {
		path, _ = homedir.Expand(path)
	}
	return path
}

// GetFileContent Reading file and return content of it
func GetFileContent(filename string) string {
	b, err := os.ReadFile(NormalizePath(filename))
	if err != nil {
		return ""
	}
	return string(b)
}

// ReadingLines Reading file and return non blank lines
func ReadingLines(filename string) []string {
	var result []string
	file, err := os.Open(NormalizePath(filename))
	if err != nil {
		return result
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		val := strings.TrimSpace(scanner.Text())
		if val == "" {
			continue
		}
		result = append(result, val)
	}
	return result
}

// WriteToFile write string to a file
func WriteToFile(filename string, data string) (string, error) {
	filename = NormalizePath(filename)
	if dir := filepath.Dir(filename); !FolderExists(dir) {
		os.MkdirAll(dir, 0750)
	}
	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	_, err = io.WriteString(file, data+"\n")
	if err != nil {
		return "", err
	}
	return filename, file.Sync()
}

// AppendToContent append string to a file
func AppendToContent(filename string, data string) (string, error) {
	filename = NormalizePath(filename)
	if dir := filepath.Dir(filename); !FolderExists(dir) {
		os.MkdirAll(dir, 0750)
	}
	// If the file doesn't exist, create it, or append to the file
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write([]byte(data + "\n")); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return filename, nil
}

// FileExists check if file is exist or not
func FileExists(filename string) bool {
	info, err := os.Stat(NormalizePath(filename))
	if os.IsNotExist(err) || err != nil {
		return false
	}
	return !info.IsDir()
}

// FolderExists check if folder is exist or not
func FolderExists(foldername string) bool {
	foldername = NormalizePath(foldername)
	if _, err := os.Stat(foldername); os.IsNotExist(err) {
		return false
	}
	return true
}

// GetTS get current timestamp and return a string
func GetTS() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// GenHash gen SHA1 hash from string
func GenHash(text string) string {
	h := sha1.New()
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// EscapeName turn an URL into something safe for a file name
func EscapeName(raw string) string {
	return url.QueryEscape(raw)
}
