package subtitles

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Tracks holds the on-disk paths of rendered subtitle files.
type Tracks struct {
	SRTPath string
	ASSPath string
}

// WriteTracks renders result into dir as <base>.srt and <base>.ass. Each
// file is written to a temporary name, synced, then renamed into place.
func WriteTracks(dir, base string, result Result, opts ASSOptions) (Tracks, error) {
	var srt, ass bytes.Buffer
	if err := WriteSRT(&srt, result.Plain); err != nil {
		return Tracks{}, err
	}
	if err := WriteASS(&ass, result.Karaoke, opts); err != nil {
		return Tracks{}, err
	}
	tracks := Tracks{
		SRTPath: filepath.Join(dir, base+".srt"),
		ASSPath: filepath.Join(dir, base+".ass"),
	}
	if err := writeFileAtomic(tracks.SRTPath, srt.Bytes()); err != nil {
		return Tracks{}, err
	}
	if err := writeFileAtomic(tracks.ASSPath, ass.Bytes()); err != nil {
		return Tracks{}, err
	}
	return tracks, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subtitle file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
