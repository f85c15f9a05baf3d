package vo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// JobOptions 作业附加参数：截取片段、纯音频、输出格式、语言
type JobOptions struct {
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	AudioOnly      bool   `json:"audio_only,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
	Language       string `json:"language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

var videoFormats = map[string]bool{"mp4": true, "mkv": true, "webm": true, "mov": true}
var audioFormats = map[string]bool{"mp3": true, "wav": true, "aac": true, "flac": true, "ogg": true, "m4a": true}

// IsAudioFormat 是否为音频容器
func IsAudioFormat(ext string) bool {
	return audioFormats[strings.ToLower(ext)]
}

// Validate 校验参数
func (o JobOptions) Validate() error {
	start, end, err := o.ClipRange()
	if err != nil {
		return err
	}
	if (start == nil) != (end == nil) {
		return errors.New("start_time and end_time must be provided together")
	}
	if start != nil && *start >= *end {
		return fmt.Errorf("start time (%ds) must be less than end time (%ds)", *start, *end)
	}
	if f := strings.ToLower(o.OutputFormat); f != "" && !videoFormats[f] && !audioFormats[f] {
		return fmt.Errorf("unsupported output format: %s", o.OutputFormat)
	}
	if o.AudioOnly && o.OutputFormat != "" && !IsAudioFormat(o.OutputFormat) {
		return fmt.Errorf("output format %s is not an audio format", o.OutputFormat)
	}
	return nil
}

// HasClip 是否指定了截取片段
func (o JobOptions) HasClip() bool {
	return strings.TrimSpace(o.StartTime) != "" && strings.TrimSpace(o.EndTime) != ""
}

// ClipRange 解析截取起止秒数，未设置时返回 nil
func (o JobOptions) ClipRange() (start, end *int, err error) {
	if s := strings.TrimSpace(o.StartTime); s != "" {
		v, err := ParseClock(s)
		if err != nil {
			return nil, nil, err
		}
		start = &v
	}
	if s := strings.TrimSpace(o.EndTime); s != "" {
		v, err := ParseClock(s)
		if err != nil {
			return nil, nil, err
		}
		end = &v
	}
	return start, end, nil
}

// clockField 每段一到两位数字，不接受符号与空白
var clockField = regexp.MustCompile(`^[0-9]{1,2}$`)

// ParseClock 解析 mm:ss 或 hh:mm:ss 为秒数
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	invalid := fmt.Errorf("invalid time format: %q, use mm:ss or hh:mm:ss", s)
	nums := make([]int, len(parts))
	for i, p := range parts {
		if !clockField.MatchString(p) {
			return 0, invalid
		}
		n, _ := strconv.Atoi(p)
		nums[i] = n
	}
	switch len(nums) {
	case 2:
		if nums[1] >= 60 {
			return 0, invalid
		}
		return nums[0]*60 + nums[1], nil
	case 3:
		if nums[1] >= 60 || nums[2] >= 60 {
			return 0, invalid
		}
		return nums[0]*3600 + nums[1]*60 + nums[2], nil
	default:
		return 0, invalid
	}
}
