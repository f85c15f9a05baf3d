package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

var (
	reTime        = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.?\d*)`)
	reProgressKey = regexp.MustCompile(`^[a-z_0-9]+=\S*$`)
)

// 转码占 transcode 步骤的 90%，其余为下载与上传
const encodeShare = 0.9

// FFmpegExecutor 用本地 ffmpeg 将上一步产物转为目标容器
type FFmpegExecutor struct {
	cfg       config.FFmpegConfig
	storage   gateway.StorageGateway
	keyPrefix string
}

func NewFFmpegExecutor(cfg config.FFmpegConfig, storage gateway.StorageGateway, keyPrefix string) *FFmpegExecutor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &FFmpegExecutor{cfg: cfg, storage: storage, keyPrefix: keyPrefix}
}

func (e *FFmpegExecutor) Kind() vo.StepKind { return vo.StepKindTranscode }

// Execute 下载输入、转码、上传结果，临时文件随工作目录清理
func (e *FFmpegExecutor) Execute(ctx context.Context, req port.StepRequest) (*port.StepResult, error) {
	if req.InputRef == "" {
		return nil, errors.New("transcode step has no input")
	}
	inputName := filepath.Base(req.InputRef)
	localInputPath := filepath.Join(req.WorkDir, "input"+filepath.Ext(inputName))
	if err := e.storage.DownloadFile(ctx, req.InputRef, localInputPath); err != nil {
		return nil, fmt.Errorf("download input: %w", err)
	}
	req.ReportProgress(0.05)

	target := TargetFormat(req.Job.Options(), inputName)
	outputName := OutputFilename(inputName, target)
	localOutputPath := filepath.Join(req.WorkDir, outputName)

	durationSec := e.probeDurationSeconds(ctx, localInputPath)
	args := BuildFFmpegArgs(e.cfg, localInputPath, localOutputPath, target)
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	logger.Infof("ffmpeg command job_uuid=%s command=%s", req.Job.JobUUID(), strings.Join(cmd.Args, " "))

	err := runCommand(ctx, cmd, func(line string) bool {
		sec, ok := ParseFFmpegProgress(line)
		if !ok {
			// 其余 -progress 键值行不计入错误输出
			return reProgressKey.MatchString(strings.TrimSpace(line))
		}
		if durationSec > 0 {
			req.ReportProgress(0.05 + clampFraction(sec/durationSec)*encodeShare)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	key := ObjectKey(e.keyPrefix, req.Job.JobUUID(), vo.StepKindTranscode.String(), outputName)
	size, err := e.storage.UploadFile(ctx, localOutputPath, key, "")
	if err != nil {
		return nil, fmt.Errorf("upload output: %w", err)
	}
	req.ReportProgress(1)
	return &port.StepResult{
		Objects: []port.StoredObject{{ObjectKey: key, Filename: SanitizeFilename(outputName), SizeBytes: size}},
	}, nil
}

// TargetFormat 目标容器：显式 output_format，否则音频为 mp3、视频为 mp4
func TargetFormat(opts vo.JobOptions, inputName string) string {
	if f := strings.ToLower(strings.TrimSpace(opts.OutputFormat)); f != "" {
		return f
	}
	inputExt := strings.TrimPrefix(strings.ToLower(filepath.Ext(inputName)), ".")
	if opts.AudioOnly || vo.IsAudioFormat(inputExt) {
		return "mp3"
	}
	return "mp4"
}

// OutputFilename 替换扩展名，与输入同名时追加后缀
func OutputFilename(inputName, target string) string {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	if base == "" {
		base = "output"
	}
	if strings.EqualFold(strings.TrimPrefix(filepath.Ext(inputName), "."), target) {
		base += "-converted"
	}
	return base + "." + target
}

// BuildFFmpegArgs 组装 ffmpeg 参数，进度输出到 stderr
func BuildFFmpegArgs(cfg config.FFmpegConfig, inputPath, outputPath, target string) []string {
	args := []string{
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-i", inputPath,
		"-progress", "pipe:2",
		"-nostats",
	}
	if vo.IsAudioFormat(target) {
		args = append(args, "-vn")
		args = append(args, audioCodecArgs(cfg, target)...)
		if cfg.SampleRate > 0 {
			args = append(args, "-ar", strconv.Itoa(cfg.SampleRate))
		}
	} else {
		videoCodec, audioCodec := cfg.VideoCodec, "aac"
		if target == "webm" {
			videoCodec, audioCodec = "libvpx-vp9", "libopus"
		}
		if videoCodec == "" {
			videoCodec = "libx264"
		}
		args = append(args, "-c:v", videoCodec)
		if cfg.VideoPreset != "" && strings.Contains(videoCodec, "264") {
			args = append(args, "-preset", cfg.VideoPreset)
		}
		args = append(args, "-c:a", audioCodec)
		if cfg.VideoAudioBitrate != "" {
			args = append(args, "-b:a", cfg.VideoAudioBitrate)
		}
		if target == "mp4" || target == "mov" {
			args = append(args, "-movflags", "+faststart")
		}
	}
	if cfg.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(cfg.Threads))
	}
	return append(args, "-y", outputPath)
}

func audioCodecArgs(cfg config.FFmpegConfig, target string) []string {
	switch target {
	case "wav":
		return []string{"-c:a", "pcm_s16le"}
	case "flac":
		return []string{"-c:a", "flac"}
	case "ogg":
		return []string{"-c:a", "libvorbis", "-b:a", cfg.AudioBitrate}
	case "aac", "m4a":
		return []string{"-c:a", "aac", "-b:a", cfg.AudioBitrate}
	default:
		return []string{"-c:a", "libmp3lame", "-b:a", cfg.AudioBitrate}
	}
}

// ParseFFmpegProgress 从 -progress 输出或 time= 行读出已处理秒数
func ParseFFmpegProgress(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"out_time_us=", "out_time_ms="} {
		if strings.HasPrefix(line, prefix) {
			// ffmpeg 的 out_time_ms 实际单位也是微秒
			us, err := strconv.ParseFloat(strings.TrimPrefix(line, prefix), 64)
			if err != nil || us < 0 {
				return 0, false
			}
			return us / 1e6, true
		}
	}
	if m := reTime.FindStringSubmatch(line); len(m) == 4 {
		hh, _ := strconv.ParseFloat(m[1], 64)
		mm, _ := strconv.ParseFloat(m[2], 64)
		ss, _ := strconv.ParseFloat(m[3], 64)
		return hh*3600 + mm*60 + ss, true
	}
	return 0, false
}

// probeDurationSeconds 调用 ffprobe 获取输入时长（秒），失败则返回 0
func (e *FFmpegExecutor) probeDurationSeconds(ctx context.Context, inputPath string) float64 {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", inputPath)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return val
}
