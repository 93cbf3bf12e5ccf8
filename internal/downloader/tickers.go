package downloader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// ParseTickers splits every input on commas and whitespace, keeping order.
// "AAPL,MSFT TSLA" and "AAPL", "MSFT", "TSLA" give the same list.
// Duplicates are kept.
func ParseTickers(inputs ...string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		out = append(out, strings.FieldsFunc(in, isSeparator)...)
	}
	if len(out) == 0 {
		return nil, &ConfigError{Field: "tickers", Err: ErrNoTickers}
	}
	return out, nil
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// ReadTickers reads a ticker list: one or more per line, comma or space
// separated. Blank lines and lines starting with # are ignored.
func ReadTickers(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading tickers: %w", err)
	}
	return ParseTickers(lines...)
}

// ReadTickersFile reads a ticker list from path.
func ReadTickersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Field: "tickers file", Err: err}
	}
	defer f.Close()
	return ReadTickers(f)
}
