// assets/embed.go
//
// Puzzles bundled into the binary. Each puzzles/<name>.json holds a payload
// in the same shape a remote puzzle source serves.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed puzzles/*.json
var files embed.FS

// Puzzles returns the bundled puzzle directory, rooted so that names resolve
// as "<name>.json".
func Puzzles() fs.FS {
	sub, err := fs.Sub(files, "puzzles")
	if err != nil {
		// only fails for an invalid literal path
		panic(err)
	}
	return sub
}
