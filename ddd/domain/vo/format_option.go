package vo

import (
	"regexp"
	"strings"
)

// FormatOption 可选清晰度/格式，只在请求内有效，不持久化
type FormatOption struct {
	Quality         string
	Resolution      string
	ApproxSizeBytes *int64
	FrameRate       *float64
	Ext             string
	FormatID        string
	Height          int
	AudioBitrate    float64
}

// IsAudioOnly 是否纯音频
func (f FormatOption) IsAudioOnly() bool {
	return f.Quality == QualityAudio
}

// QualityAudio 纯音频选项的清晰度标签
const QualityAudio = "audio"

// QualityBest 不指定清晰度时的默认标签
const QualityBest = "best"

// FormatCatalog 来源探测结果
type FormatCatalog struct {
	Platform    string
	Title       string
	DurationSec float64
	Uploader    string
	Formats     []FormatOption
}

// Find 按清晰度标签查找；没有完全匹配时 "720p" 可匹配同高度的高帧率标签如 "720p60"，
// 目录按清晰度从高到低排序，取第一个
func (c *FormatCatalog) Find(quality string) (FormatOption, bool) {
	if c == nil {
		return FormatOption{}, false
	}
	for _, f := range c.Formats {
		if f.Quality == quality {
			return f, true
		}
	}
	if !heightLabel.MatchString(quality) {
		return FormatOption{}, false
	}
	for _, f := range c.Formats {
		rest := strings.TrimPrefix(f.Quality, quality)
		if rest != f.Quality && frameRateSuffix.MatchString(rest) {
			return f, true
		}
	}
	return FormatOption{}, false
}

var (
	heightLabel     = regexp.MustCompile(`^\d+p$`)
	frameRateSuffix = regexp.MustCompile(`^\d+$`)
)
