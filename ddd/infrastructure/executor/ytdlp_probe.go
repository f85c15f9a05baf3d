package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// YtDlpProbe 通过 yt-dlp -J 读取来源的格式列表
type YtDlpProbe struct {
	cfg config.YtDlpConfig
}

// NewYtDlpProbe 创建探测器
func NewYtDlpProbe(cfg config.YtDlpConfig) *YtDlpProbe {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 45 * time.Second
	}
	return &YtDlpProbe{cfg: cfg}
}

type ytdlpInfo struct {
	Extractor    string        `json:"extractor"`
	ExtractorKey string        `json:"extractor_key"`
	Title        string        `json:"title"`
	Duration     float64       `json:"duration"`
	Uploader     string        `json:"uploader"`
	WebpageURL   string        `json:"webpage_url"`
	Formats      []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	ABR            *float64 `json:"abr"`
	TBR            *float64 `json:"tbr"`
	FileSize       *int64   `json:"filesize"`
	FileSizeApprox *int64   `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
}

func (p *YtDlpProbe) Probe(ctx context.Context, source string) (*gateway.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	args := []string{"-J", "--skip-download", "--no-warnings", "--no-playlist"}
	args = append(args, p.cfg.ExtraArgs...)
	args = append(args, source)

	cmd := exec.CommandContext(ctx, p.cfg.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("probe timed out after %s", p.cfg.ProbeTimeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.New(msg)
	}
	result, err := ParseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if result.Platform == "" {
		result.Platform = PlatformFromURL(source)
	}
	logger.Debugf("yt-dlp probe done source=%s platform=%s formats=%d elapsed=%s",
		source, result.Platform, len(result.Formats), time.Since(start))
	return result, nil
}

// ParseProbeOutput 解析 yt-dlp -J 的输出
func ParseProbeOutput(data []byte) (*gateway.ProbeResult, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	platform := strings.ToLower(info.ExtractorKey)
	if platform == "" {
		platform = strings.ToLower(info.Extractor)
	}
	result := &gateway.ProbeResult{
		Platform:    platform,
		Title:       info.Title,
		DurationSec: info.Duration,
		Uploader:    info.Uploader,
		Formats:     make([]gateway.ProbeFormat, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		// 分片清单与故事板没有可下载的媒体流
		if f.Ext == "mhtml" {
			continue
		}
		result.Formats = append(result.Formats, gateway.ProbeFormat{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Width:          intOr(f.Width),
			Height:         intOr(f.Height),
			FPS:            floatOr(f.FPS),
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			ABR:            floatOr(f.ABR),
			TBR:            floatOr(f.TBR),
			FileSize:       int64Or(f.FileSize),
			FileSizeApprox: int64Or(f.FileSizeApprox),
			Note:           f.FormatNote,
		})
	}
	if len(result.Formats) == 0 {
		return nil, errors.New("source exposes no downloadable formats")
	}
	return result, nil
}

// PlatformFromURL 由主机名推断平台，如 www.youtube.com -> youtube
func PlatformFromURL(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Hostname() == "" {
		return "generic"
	}
	parts := strings.Split(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), ".")
	switch {
	case len(parts) >= 2:
		return parts[len(parts)-2]
	default:
		return parts[0]
	}
}

func intOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func int64Or(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
