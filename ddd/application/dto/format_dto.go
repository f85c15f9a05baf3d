package dto

import "media-pipeline-service/ddd/domain/vo"

// FormatOptionDTO 可选格式
type FormatOptionDTO struct {
	Quality         string   `json:"quality"`
	Resolution      string   `json:"resolution"`
	ApproxSizeBytes *int64   `json:"approxSizeBytes,omitempty"`
	FrameRate       *float64 `json:"frameRate,omitempty"`
	Ext             string   `json:"ext"`
}

// FormatCatalogDTO 来源格式目录
type FormatCatalogDTO struct {
	Platform    string            `json:"platform"`
	Title       string            `json:"title,omitempty"`
	DurationSec float64           `json:"durationSec,omitempty"`
	Uploader    string            `json:"uploader,omitempty"`
	Formats     []FormatOptionDTO `json:"formats"`
}

// NewFormatCatalogDTO 转换格式目录
func NewFormatCatalogDTO(c *vo.FormatCatalog) *FormatCatalogDTO {
	out := &FormatCatalogDTO{
		Platform:    c.Platform,
		Title:       c.Title,
		DurationSec: c.DurationSec,
		Uploader:    c.Uploader,
		Formats:     make([]FormatOptionDTO, 0, len(c.Formats)),
	}
	for _, f := range c.Formats {
		out.Formats = append(out.Formats, FormatOptionDTO{
			Quality:         f.Quality,
			Resolution:      f.Resolution,
			ApproxSizeBytes: f.ApproxSizeBytes,
			FrameRate:       f.FrameRate,
			Ext:             f.Ext,
		})
	}
	return out
}
