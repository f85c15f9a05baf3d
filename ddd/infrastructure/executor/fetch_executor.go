package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

var downloadProgress = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// 下载占 fetch 步骤的 90%，其余为上传
const downloadShare = 0.9

// FetchExecutor 使用 yt-dlp 下载来源媒体并上传为 original 产物
type FetchExecutor struct {
	cfg       config.YtDlpConfig
	storage   gateway.StorageGateway
	resolver  gateway.FormatResolver
	keyPrefix string
}

// NewFetchExecutor 创建下载执行器
func NewFetchExecutor(cfg config.YtDlpConfig, storage gateway.StorageGateway, resolver gateway.FormatResolver, keyPrefix string) *FetchExecutor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	return &FetchExecutor{cfg: cfg, storage: storage, resolver: resolver, keyPrefix: keyPrefix}
}

func (e *FetchExecutor) Kind() vo.StepKind { return vo.StepKindFetch }

func (e *FetchExecutor) Execute(ctx context.Context, req port.StepRequest) (*port.StepResult, error) {
	source := req.InputRef
	if source == "" {
		return nil, errors.New("fetch step has no source")
	}
	opts := req.Job.Options()

	selection, platform, err := e.selectFormat(ctx, req, source, opts)
	if err != nil {
		return nil, err
	}
	if platform == "" {
		platform = PlatformFromURL(source)
	}

	args, err := BuildDownloadArgs(selection, opts, req.WorkDir, e.cfg.ExtraArgs)
	if err != nil {
		return nil, err
	}
	args = append(args, source)

	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	logger.Infof("yt-dlp command job_uuid=%s command=%s", req.Job.JobUUID(), strings.Join(cmd.Args, " "))
	err = runCommand(ctx, cmd, func(line string) bool {
		if pct, ok := ParseDownloadProgress(line); ok {
			req.ReportProgress(pct / 100 * downloadShare)
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	localPath, err := findDownloaded(req.WorkDir)
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(localPath)
	key := ObjectKey(e.keyPrefix, req.Job.JobUUID(), vo.ArtifactKindOriginal, filename)
	size, err := e.storage.UploadFile(ctx, localPath, key, "")
	if err != nil {
		return nil, err
	}
	req.ReportProgress(1)

	return &port.StepResult{
		Objects:  []port.StoredObject{{ObjectKey: key, Filename: SanitizeFilename(filename), SizeBytes: size}},
		Platform: platform,
	}, nil
}

// FormatSelection 最终交给 yt-dlp 的格式表达式
type FormatSelection struct {
	Format    string
	AudioOnly bool
}

// selectFormat best 直接下载；其它清晰度在执行期重新解析格式目录
func (e *FetchExecutor) selectFormat(ctx context.Context, req port.StepRequest, source string, opts vo.JobOptions) (FormatSelection, string, error) {
	quality := req.Job.Quality()
	if quality == "" || quality == vo.QualityBest {
		if opts.AudioOnly {
			return FormatSelection{Format: "bestaudio/best", AudioOnly: true}, "", nil
		}
		return FormatSelection{Format: "best"}, "", nil
	}
	if quality == vo.QualityAudio {
		return FormatSelection{Format: "bestaudio/best", AudioOnly: true}, "", nil
	}
	if e.resolver == nil {
		return FormatSelection{}, "", errors.New("format resolver not configured")
	}

	req.EnterPhase(vo.JobStatusResolvingFormats)
	option, catalog, err := e.resolver.ResolveOption(ctx, source, quality)
	if err != nil {
		return FormatSelection{}, "", fmt.Errorf("resolve quality %s: %w", quality, err)
	}
	req.EnterPhase(vo.JobStatusRunning)

	platform := ""
	if catalog != nil {
		platform = catalog.Platform
	}
	if option.IsAudioOnly() || opts.AudioOnly {
		return FormatSelection{Format: option.FormatID + "/bestaudio/best", AudioOnly: true}, platform, nil
	}
	return FormatSelection{Format: option.FormatID + "+bestaudio/best"}, platform, nil
}

// BuildDownloadArgs 组装 yt-dlp 参数（不含来源地址）
func BuildDownloadArgs(sel FormatSelection, opts vo.JobOptions, workDir string, extra []string) ([]string, error) {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"-f", sel.Format,
		"-o", filepath.Join(workDir, "%(title).200B.%(ext)s"),
	}
	if sel.AudioOnly {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "192K")
	} else {
		args = append(args, "--merge-output-format", "mp4")
	}
	if opts.HasClip() {
		start, end, err := opts.ClipRange()
		if err != nil {
			return nil, err
		}
		args = append(args,
			"--download-sections", fmt.Sprintf("*%d-%d", *start, *end),
			"--force-keyframes-at-cuts",
		)
	}
	return append(args, extra...), nil
}

// ParseDownloadProgress 解析 "[download]  42.3% of ..." 行
func ParseDownloadProgress(line string) (float64, bool) {
	m := downloadProgress.FindStringSubmatch(strings.TrimSpace(line))
	if len(m) != 2 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// findDownloaded 取工作目录中最大的成品文件，忽略临时分片
func findDownloaded(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	type candidate struct {
		path string
		size int64
	}
	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Contains(name, ".part-Frag") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, name), size: info.Size()})
	}
	if len(files) == 0 {
		return "", errors.New("download finished without an output file")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })
	return files[0].path, nil
}
