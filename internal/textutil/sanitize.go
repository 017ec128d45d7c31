package textutil

import (
	"path/filepath"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName strips directory components from an uploaded filename and
// replaces filesystem-unsafe characters. Slashes, backslashes, colons, and
// asterisks become dashes; other unsafe characters are removed. Returns
// "upload" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	switch name {
	case "", ".", "..", "-":
		return "upload"
	}
	return name
}
