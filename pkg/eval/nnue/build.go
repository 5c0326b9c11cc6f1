package nnue

import (
	"log"
	"os"
	"path/filepath"
)

// NewDefault tries a couple of conventional locations for a weight file
// and returns nil (not an error) if none are found, so a caller can fall
// back to the handcrafted evaluator (see SPEC_FULL.md §9 Open Questions).
func NewDefault() *Network {
	for _, path := range defaultSearchPaths() {
		n, err := LoadFromFile(path)
		if err == nil {
			log.Println("nnue: loaded weights", "path", path)
			return n
		}
	}
	log.Println("nnue: no weight file found, falling back to handcrafted evaluation")
	return nil
}

func defaultSearchPaths() []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "citadel.nnue"))
	}
	paths = append(paths, "./citadel.nnue")
	return paths
}
