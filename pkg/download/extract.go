package download

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
)

// ArchiveSpec describes how an archive is unpacked.
type ArchiveSpec struct {
	// Dest is the directory the archive contents are extracted into.
	Dest string
	// Strip removes this many leading path elements from every entry.
	Strip int
	// MarkExec lists files below Dest that are marked executable afterwards.
	// Needed because .zip style archives don't carry permissions everywhere.
	MarkExec []string
}

type extractor func(*os.File, *progressbar.ProgressBar, ArchiveSpec) error

func getExtractor(url string) (extractor, error) {
	if strings.HasSuffix(url, ".tar.gz") {
		return func(f *os.File, bar *progressbar.ProgressBar, spec ArchiveSpec) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, spec)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.xz") {
		return func(f *os.File, bar *progressbar.ProgressBar, spec ArchiveSpec) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, spec)
		}, nil
	}

	return nil, eris.Errorf("Archive format of %s not supported", url)
}

// Extract unpacks the archive in f (downloaded from url, which determines the
// format) according to spec.
func Extract(f *os.File, url string, spec ArchiveSpec) error {
	stat, err := f.Stat()
	if err != nil {
		return eris.Wrap(err, "Failed to determine archive size")
	}

	ex, err := getExtractor(url)
	if err != nil {
		return err
	}

	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "Failed to rewind archive")
	}

	bar := getProgressBar(stat.Size(), "      extract")
	err = ex(f, bar, spec)
	if err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		for _, binPath := range spec.MarkExec {
			binPath = filepath.Join(spec.Dest, binPath)
			fi, err := os.Stat(binPath)
			if err != nil {
				return eris.Wrapf(err, "Failed to read permissions for %s", binPath)
			}

			err = os.Chmod(binPath, fi.Mode()|0700)
			if err != nil {
				return eris.Wrapf(err, "Failed to mark %s as executable", binPath)
			}
		}
	}

	return nil
}

func openExtractorDest(spec ArchiveSpec, item string) (*os.File, string, error) {
	// normalize the path and strip spec.Strip elements from the beginning
	pathParts := strings.Split(filepath.Clean(item), string(filepath.Separator))
	if len(pathParts) <= spec.Strip {
		return nil, "/", nil
	}

	dest := filepath.Join(spec.Dest, strings.Join(pathParts[spec.Strip:], string(filepath.Separator)))
	if dest == spec.Dest {
		return nil, "/", nil
	}

	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, os.FileMode(0770))
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, spec ArchiveSpec) error {
	buf := make([]byte, 4096)
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "Failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractorDest(spec, item.Name)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}
		defer destHandle.Close()

		if item.Typeflag&tar.TypeSymlink == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		os.Chmod(dest, fi.Mode())

		for {
			n, err := archive.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				return eris.Wrapf(err, "Failed to read archive entry %s", item.Name)
			}

			_, err = destHandle.Write(buf[:n])
			if err != nil {
				return eris.Wrapf(err, "Failed to write extracted file %s", dest)
			}

			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				bar.Set64(pos)
			}
		}

		destHandle.Close()
	}

	return nil
}
