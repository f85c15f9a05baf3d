package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
)

var sourcePattern = regexp.MustCompile(`^https?://.+`)

// ValidateSource 校验来源地址，非法时返回 ValidationError
func ValidateSource(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return errno.Newf(errno.ErrValidation, "source is required")
	}
	if !sourcePattern.MatchString(source) {
		return errno.Newf(errno.ErrValidation, "source must be an http(s) URL")
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return errno.Newf(errno.ErrValidation, "source is not a valid URL")
	}
	return nil
}

// FormatService 来源格式目录解析
type FormatService interface {
	gateway.FormatResolver
	// Resolve 返回按清晰度从高到低排序的可选格式
	Resolve(ctx context.Context, source string) (*vo.FormatCatalog, error)
}

type formatServiceImpl struct {
	probe gateway.MediaProbe
}

// NewFormatService 创建格式解析服务
func NewFormatService(probe gateway.MediaProbe) FormatService {
	return &formatServiceImpl{probe: probe}
}

func (s *formatServiceImpl) Resolve(ctx context.Context, source string) (*vo.FormatCatalog, error) {
	if err := ValidateSource(source); err != nil {
		return nil, err
	}
	result, err := s.probe.Probe(ctx, strings.TrimSpace(source))
	if err != nil {
		logger.Warnf("probe source failed source=%s error=%v", source, err)
		return nil, errno.NewBizError(errno.ErrUnresolvableSource, err)
	}
	if result == nil {
		return nil, errno.NewBizError(errno.ErrUnresolvableSource, errors.New("empty probe result"))
	}
	return BuildCatalog(result), nil
}

func (s *formatServiceImpl) ResolveOption(ctx context.Context, source, quality string) (*vo.FormatOption, *vo.FormatCatalog, error) {
	catalog, err := s.Resolve(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	opt, ok := catalog.Find(quality)
	if !ok {
		available := make([]string, 0, len(catalog.Formats))
		for _, f := range catalog.Formats {
			available = append(available, f.Quality)
		}
		return nil, catalog, fmt.Errorf("quality %q is not available, choose one of %v", quality, available)
	}
	return &opt, catalog, nil
}

// BuildCatalog 将探测结果整理为排好序的格式目录：每个清晰度保留一项，纯音频排最后
func BuildCatalog(result *gateway.ProbeResult) *vo.FormatCatalog {
	catalog := &vo.FormatCatalog{
		Platform:    result.Platform,
		Title:       result.Title,
		DurationSec: result.DurationSec,
		Uploader:    result.Uploader,
	}

	best := make(map[string]vo.FormatOption)
	var audio *vo.FormatOption
	for _, f := range result.Formats {
		switch {
		case f.HasVideo() && f.Height > 0:
			opt := videoOption(f)
			if cur, ok := best[opt.Quality]; !ok || betterVideo(opt, cur) {
				best[opt.Quality] = opt
			}
		case f.HasAudio() && !f.HasVideo():
			opt := audioOption(f)
			if audio == nil || betterAudio(opt, *audio) {
				audio = &opt
			}
		}
	}

	formats := make([]vo.FormatOption, 0, len(best)+1)
	for _, opt := range best {
		formats = append(formats, opt)
	}
	sort.Slice(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if fa, fb := deref(a.FrameRate), deref(b.FrameRate); fa != fb {
			return fa > fb
		}
		return sizeOf(a) > sizeOf(b)
	})
	if audio != nil {
		formats = append(formats, *audio)
	}
	catalog.Formats = formats
	return catalog
}

func videoOption(f gateway.ProbeFormat) vo.FormatOption {
	quality := fmt.Sprintf("%dp", f.Height)
	var fps *float64
	if f.FPS > 0 {
		v := f.FPS
		fps = &v
		if f.FPS > 30 {
			quality = fmt.Sprintf("%dp%d", f.Height, int(math.Round(f.FPS)))
		}
	}
	resolution := fmt.Sprintf("%dp", f.Height)
	if f.Width > 0 {
		resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	return vo.FormatOption{
		Quality:         quality,
		Resolution:      resolution,
		ApproxSizeBytes: approxSize(f),
		FrameRate:       fps,
		Ext:             f.Ext,
		FormatID:        f.FormatID,
		Height:          f.Height,
	}
}

func audioOption(f gateway.ProbeFormat) vo.FormatOption {
	return vo.FormatOption{
		Quality:         vo.QualityAudio,
		Resolution:      "audio only",
		ApproxSizeBytes: approxSize(f),
		Ext:             f.Ext,
		FormatID:        f.FormatID,
		AudioBitrate:    f.ABR,
	}
}

func approxSize(f gateway.ProbeFormat) *int64 {
	size := f.FileSize
	if size <= 0 {
		size = f.FileSizeApprox
	}
	if size <= 0 {
		return nil
	}
	return &size
}

// betterVideo 同一清晰度下优先 mp4 容器，其次体积更大
func betterVideo(a, b vo.FormatOption) bool {
	if (a.Ext == "mp4") != (b.Ext == "mp4") {
		return a.Ext == "mp4"
	}
	return sizeOf(a) > sizeOf(b)
}

func betterAudio(a, b vo.FormatOption) bool {
	if a.AudioBitrate != b.AudioBitrate {
		return a.AudioBitrate > b.AudioBitrate
	}
	return sizeOf(a) > sizeOf(b)
}

func sizeOf(o vo.FormatOption) int64 {
	if o.ApproxSizeBytes == nil {
		return 0
	}
	return *o.ApproxSizeBytes
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
