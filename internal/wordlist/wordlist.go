// Package wordlist loads word lists and ranked word lists.
package wordlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadWords reads a drill word list: one word per line, optionally
// followed by a rank that is ignored. Blank lines and lines starting with
// '#' are skipped; repeated words are kept once.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()

	var words []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		words = append(words, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list %s is empty", path)
	}
	return words, nil
}

// ParseRanked reads "word rank" lines. A line holding only a word gets its
// line number as rank. When a word repeats, the lowest rank wins.
func ParseRanked(r io.Reader) (map[string]int, error) {
	ranks := map[string]int{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		rank := lineNo
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid rank %q", lineNo, fields[len(fields)-1])
			}
			rank = n
		}
		word := fields[0]
		if prev, ok := ranks[word]; ok && prev <= rank {
			continue
		}
		ranks[word] = rank
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ranks, nil
}

// LoadRanked reads a ranked word list from path.
func LoadRanked(path string) (map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()
	return ParseRanked(file)
}
