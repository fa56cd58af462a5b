package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imprevi/clipgen/logging"
	"github.com/imprevi/clipgen/types"
)

// downloadFormat caps remote sources at 1080p; analysis only needs the
// audio track and clips rarely ship above that.
const downloadFormat = "best[height<=1080]/best"

var downloadProgressRe = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)

// DownloadProgress receives download completion as a percentage in [0, 100].
type DownloadProgress func(pct float64)

// Downloader fetches a remote VOD into destDir and returns the local path.
type Downloader interface {
	Download(ctx context.Context, url, destDir string, progress DownloadProgress) (string, error)
}

// ytDlpDownloader shells out to yt-dlp, which handles Twitch, YouTube, and
// most VOD hosts.
type ytDlpDownloader struct {
	path   string
	logger zerolog.Logger
}

// NewYtDlpDownloader locates yt-dlp on PATH.
func NewYtDlpDownloader() (Downloader, error) {
	path, err := exec.LookPath("yt-dlp")
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found in PATH: %w", err)
	}
	return &ytDlpDownloader{
		path:   path,
		logger: logging.WithComponent("downloader"),
	}, nil
}

// Download fetches the URL into destDir as source.<ext>, reporting percent
// lines as they stream past. Errors carry a JobError kind classified from
// yt-dlp's output.
func (d *ytDlpDownloader) Download(ctx context.Context, url, destDir string, progress DownloadProgress) (string, error) {
	d.logger.Info().Str("url", url).Msg("starting download")

	cmd := exec.CommandContext(ctx, d.path,
		"--newline",
		"--no-playlist",
		"-f", downloadFormat,
		"-o", filepath.Join(destDir, "source.%(ext)s"),
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", types.WrapErrorf(types.ErrInternal, err, "starting yt-dlp")
	}
	if err := cmd.Start(); err != nil {
		return "", types.WrapErrorf(types.ErrInternal, err, "starting yt-dlp")
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		m := downloadProgressRe.FindStringSubmatch(scanner.Text())
		if m == nil || progress == nil {
			continue
		}
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			progress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", types.WrapErrorf(types.ErrTimeout, ctxErr, "download timed out")
			}
			return "", ctxErr
		}
		detail := lastStderrLine(stderr.String())
		kind := classifyDownloadError(detail)
		d.logger.Warn().Str("url", url).Str("detail", detail).Msg("download failed")
		return "", types.WrapErrorf(kind, err, "download failed: %s", detail)
	}

	path, err := findDownloaded(destDir)
	if err != nil {
		return "", types.WrapErrorf(types.ErrInternal, err, "download produced no file")
	}
	d.logger.Info().Str("path", path).Msg("download complete")
	return path, nil
}

// classifyDownloadError maps yt-dlp failure text onto the job error
// taxonomy. Unknown failures default to unreachable since the source was
// never fetched.
func classifyDownloadError(detail string) types.ErrorKind {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "404"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "unavailable"):
		return types.ErrNotFound
	case strings.Contains(lower, "403"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "private"),
		strings.Contains(lower, "subscriber"),
		strings.Contains(lower, "members only"):
		return types.ErrForbidden
	default:
		return types.ErrUnreachable
	}
}

// findDownloaded resolves the source.<ext> file yt-dlp wrote, skipping
// .part leftovers.
func findDownloaded(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "source.") || strings.HasSuffix(name, ".part") {
			continue
		}
		return filepath.Join(destDir, name), nil
	}
	return "", fmt.Errorf("no completed download in %s", destDir)
}

func lastStderrLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "unknown error"
}
