// Package privacy removes protected columns from result tables before they leave the process.
package privacy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/researchportal/resultpipe/pkg/logger"
)

// PathBlacklist is the immutable set of column paths that must never be returned. The zero
// value is unavailable: filtering with it withholds every table.
type PathBlacklist struct {
	available bool
	paths     *hashset.Set
}

// Unavailable returns the blacklist that stands for a failed load.
func Unavailable() PathBlacklist {
	return PathBlacklist{}
}

// NewPathBlacklist builds an available blacklist. Blank entries are ignored.
func NewPathBlacklist(paths ...string) PathBlacklist {
	set := hashset.New()
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			set.Add(p)
		}
	}
	return PathBlacklist{available: true, paths: set}
}

func (b PathBlacklist) Available() bool {
	return b.available
}

func (b PathBlacklist) Contains(path string) bool {
	return b.available && b.paths.Contains(path)
}

func (b PathBlacklist) Len() int {
	if !b.available {
		return 0
	}
	return b.paths.Size()
}

// Paths returns the entries in sorted order.
func (b PathBlacklist) Paths() []string {
	if !b.available {
		return nil
	}
	out := make([]string, 0, b.paths.Size())
	for _, v := range b.paths.Values() {
		out = append(out, v.(string))
	}
	sort.Strings(out)
	return out
}

// errEmptyBlacklist is returned for a file without any content. An empty blacklist has to be
// stated explicitly: an empty list document or a line-based file holding only comments.
var errEmptyBlacklist = errors.New("blacklist file is empty")

type blacklistDocument struct {
	Paths []string `json:"paths"`
}

// LoadPathBlacklist reads the blacklist file. YAML and JSON files hold a list of paths or an
// object with a "paths" list; any other file holds one path per line, with blank lines and
// lines starting with '#' ignored. A file without content is a failure in every format. Every
// failure is logged and yields Unavailable.
func LoadPathBlacklist(file string, log logger.Logger) PathBlacklist {
	if file == "" {
		log.Error("path blacklist file is not configured, every result will be withheld")
		return Unavailable()
	}

	paths, err := readPaths(file)
	if err != nil {
		log.Error("failed to load path blacklist, every result will be withheld",
			zap.String("file", file),
			zap.Error(err))
		return Unavailable()
	}

	blacklist := NewPathBlacklist(paths...)
	log.Info("loaded path blacklist", zap.String("file", file), zap.Int("paths", blacklist.Len()))
	return blacklist
}

func readPaths(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBlacklist
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml", ".json":
		return decodeDocument(data)
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}

func decodeDocument(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil && list != nil {
		return list, nil
	}

	var doc blacklistDocument
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("blacklist document has no paths")
	}
	return doc.Paths, nil
}
