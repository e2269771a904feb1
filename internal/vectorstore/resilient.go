package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// chromem stores each collection in a directory named by a hash prefix of
// its name; the collection metadata is 00000000.gob inside it.
var collectionDirPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

const chromemMetadataFile = "00000000.gob"

// openChromemDB loads the persistent DB. If loading fails because a
// collection directory lost its metadata file, the directory is moved to
// .quarantine/ and the load is retried once.
func openChromemDB(path string, compress bool, logger *zap.Logger) (*chromem.DB, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "collection metadata file not found") {
		return nil, err
	}

	broken, findErr := findBrokenCollections(path)
	if findErr != nil || len(broken) == 0 {
		return nil, err
	}

	quarantine := filepath.Join(path, ".quarantine")
	if mkErr := os.MkdirAll(quarantine, 0o755); mkErr != nil {
		return nil, fmt.Errorf("%w (quarantine failed: %v)", err, mkErr)
	}
	for _, dir := range broken {
		logger.Warn("quarantining collection without metadata", zap.String("dir", dir))
		if mvErr := os.Rename(filepath.Join(path, dir), filepath.Join(quarantine, dir)); mvErr != nil {
			logger.Error("quarantine failed", zap.String("dir", dir), zap.Error(mvErr))
		}
	}

	return chromem.NewPersistentDB(path, compress)
}

// findBrokenCollections lists collection directories that hold document
// files but no metadata file.
func findBrokenCollections(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var broken []string
	for _, e := range entries {
		if !e.IsDir() || !collectionDirPattern.MatchString(e.Name()) {
			continue
		}
		dir := filepath.Join(path, e.Name())
		if hasFile(dir, chromemMetadataFile) || hasFile(dir, chromemMetadataFile+".gz") {
			continue
		}
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && (strings.HasSuffix(f.Name(), ".gob") || strings.HasSuffix(f.Name(), ".gob.gz")) {
				broken = append(broken, e.Name())
				break
			}
		}
	}
	return broken, nil
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
