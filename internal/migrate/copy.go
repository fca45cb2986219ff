package migrate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sealad886/ollamautil/internal/cache"
)

// copyChunk bounds the memory used per copy regardless of blob size.
const copyChunk = 1 << 20

// copyFile copies src to dst in chunks, creating parent directories as
// needed and emitting progress between chunks. It returns the bytes written.
func (e *Engine) copyFile(src, dst, planID string, ref cache.Ref) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("creating destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}

	var done int64
	buf := make([]byte, copyChunk)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return done, fmt.Errorf("writing %s: %w", dst, werr)
			}
			done += int64(n)
			if e.Progress != nil {
				e.Progress(Progress{PlanID: planID, Ref: ref, File: dst, Done: done, Total: info.Size()})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return done, fmt.Errorf("reading %s: %w", src, rerr)
		}
	}

	if err := out.Close(); err != nil {
		return done, fmt.Errorf("closing %s: %w", dst, err)
	}
	return done, nil
}

// copyMetadata mirrors mode and timestamps from src onto dst, and from the
// source parent directory onto the destination parent. Metadata problems are
// logged and never fail the copy.
func copyMetadata(src, dst string) {
	copyStat(src, dst)
	copyStat(filepath.Dir(src), filepath.Dir(dst))
}

func copyStat(src, dst string) {
	info, err := os.Stat(src)
	if err == nil {
		err = os.Chmod(dst, info.Mode().Perm())
	}
	if err == nil {
		err = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	if err != nil {
		slog.Warn("could not copy metadata, continuing", "path", dst, "error", err)
	}
}
