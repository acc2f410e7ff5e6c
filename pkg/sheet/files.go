package sheet

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

var (
	dayStamp   = regexp.MustCompile(`(\d{8})$`)
	monthStamp = regexp.MustCompile(`(\d{4})_(\d{2})$`)
)

// DefaultExtensions are the spreadsheet extensions [Files] considers when
// none are given.
var DefaultExtensions = []string{".xls", ".xlsx"}

// FileDate parses the date stamp at the end of a file stem: YYYYMMDD, or
// YYYY_MM which yields the first of the month.
func FileDate(path string) (time.Time, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if m := dayStamp.FindStringSubmatch(stem); m != nil {
		if t, err := time.Parse("20060102", m[1]); err == nil {
			return t, nil
		}
	}
	if m := monthStamp.FindStringSubmatch(stem); m != nil {
		if t, err := time.Parse("2006_01", m[1]+"_"+m[2]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New(errors.ErrCodeInvalidInput, "no date stamp in file name %q", base)
}

// Files lists the files in dir whose name contains key and whose extension is
// one of exts. Office lock files (~$...) are skipped. Extensions may be given
// with or without the leading dot.
func Files(dir, key string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	want := make([]string, len(exts))
	for i, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		want[i] = strings.ToLower(e)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", dir)
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		if !slices.Contains(want, strings.ToLower(filepath.Ext(name))) {
			continue
		}
		if strings.Contains(name, key) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// Latest returns, for each key, the matching file with the newest date stamp.
// A warning is logged when the keys' newest dates disagree.
func Latest(logger *log.Logger, dir string, keys []string, exts []string) ([]string, error) {
	if logger == nil {
		logger = log.Default()
	}
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]string, len(keys))
	dates := make([]time.Time, len(keys))
	for i, key := range keys {
		files, err := Files(dir, key, exts)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no file matching %q in %s", key, dir)
		}
		for _, f := range files {
			d, err := FileDate(f)
			if err != nil {
				return nil, err
			}
			if out[i] == "" || d.After(dates[i]) {
				out[i], dates[i] = f, d
			}
		}
	}
	for _, d := range dates[1:] {
		if !d.Equal(dates[0]) {
			logger.Warn("latest files have different dates", "dates", dates)
			break
		}
	}
	return out, nil
}
