// Package blob stores idea audio. Objects are addressed by an opaque ref
// that the ideas service keeps on the record and never interprets.
package blob

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"ideashare/api/internal/util"
)

var ErrNotFound = errors.New("blob not found")

// Object is an upload handed to a store.
type Object struct {
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectKey builds the storage key
// public/<ownerId>/<unixMillis>_<unique>_<filename>. unique keeps two
// uploads of the same file in the same millisecond apart. Directory parts
// of filename are dropped.
func ObjectKey(ownerID, filename string, at time.Time, unique string) string {
	return fmt.Sprintf("public/%s/%d_%s_%s", cleanSegment(ownerID), at.UnixMilli(), cleanSegment(unique), cleanFilename(filename))
}

func newUnique() string {
	return util.NewID("")
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return "audio"
	}
	return cleanSegment(name)
}

func cleanSegment(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, s)
}
